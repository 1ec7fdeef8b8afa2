package handler

const (
	errInternalServer = "Internal server error"
	errDuplicateEmail = "An account with this email already exists"
)
