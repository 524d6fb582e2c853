package constants

// Request limits
const (
	// MaxFrameUploadSize is the maximum size of a recognize request body (20MB).
	// Frames arrive base64 encoded, so this covers ~15MB of image data.
	MaxFrameUploadSize = 20 << 20
)

// Excuse endpoint reason codes
const (
	ReasonLimitReached          = "limit_reached"
	ReasonForbiddenClass        = "forbidden_class"
	ReasonNoAcademicYear        = "no_academic_year"
	ReasonNotInClass            = "not_in_class"
	ReasonTeacherProfileMissing = "teacher_profile_missing"
)
