package handler

const (
	errInternalServer      = "Internal server error"
	errProgramNotFound     = "Program not found"
	errProgramNameConflict = "Program with this name already exists"
	errInvalidSchedule     = "Schedule description could not be interpreted"
	errInvalidStatus       = "Invalid status value"
	errVersionNotFound     = "Version not found"
	errAutomationNotFound  = "Automation not found"
	errNoSteps             = "Automation needs at least one step"
	errInvalidDelay        = "Step delay is invalid"
	errEnrollmentConflict  = "Recipient is already enrolled in this automation"
	errInvalidEmailAddress = "Recipient address is invalid"
)
