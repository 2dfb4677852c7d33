package errors

// Error code format: AABBCCC (7 digits)
//
//	AA  (00-99): Service/module code
//	BB  (00-99): Category code
//	CCC (000-999): Sequence number within the category

// Service codes.
const (
	// ServiceCommon holds errors shared by all services.
	ServiceCommon = 0

	// ServiceChat holds chat pipeline errors.
	ServiceChat = 4

	// ServiceInfraDB holds database and vector store errors.
	ServiceInfraDB = 10

	// ServiceInfraCache holds cache layer errors.
	ServiceInfraCache = 11
)

// Category codes.
const (
	CategorySuccess    = 0
	CategoryRequest    = 1
	CategoryAuth       = 2
	CategoryPermission = 3
	CategoryResource   = 4
	CategoryConflict   = 5
	CategoryRateLimit  = 6
	CategoryInternal   = 7
	CategoryDatabase   = 8
	CategoryCache      = 9
	CategoryNetwork    = 10
	CategoryTimeout    = 11
	CategoryConfig     = 12
)

// MakeCode creates an error code from service, category, and sequence.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode parses an error code into service, category, and sequence.
func ParseCode(code int) (service, category, sequence int) {
	service = code / 100000
	category = (code % 100000) / 1000
	sequence = code % 1000
	return
}
