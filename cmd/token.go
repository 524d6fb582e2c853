package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API access token",
	Long: `Issue a signed access token for a user, for scripts and kiosk cameras.
The token is signed with JWT_SECRET and carries the user id and role.

Example:
  face-attendance token --user 12 --role teacher --ttl 720h`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().Int64("user", 0, "User id (required)")
	tokenCmd.Flags().String("role", string(database.RoleTeacher), "Role: admin, teacher or student")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	userID := mustGetInt64(cmd, "user")
	role := database.Role(mustGetString(cmd, "role"))
	ttl := mustGetDuration(cmd, "ttl")

	if userID <= 0 {
		return errors.New("--user is required")
	}
	switch role {
	case database.RoleAdmin, database.RoleTeacher, database.RoleStudent:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	cfg := config.Load()
	token, err := middleware.IssueToken(cfg.Auth.JWTSecret, attendance.Principal{UserID: userID, Role: role}, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
