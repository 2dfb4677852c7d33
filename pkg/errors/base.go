package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:     0,
	Reason:   "OK",
	HTTP:     http.StatusOK,
	GRPCCode: codes.OK,
	Message:  "Success",
})

// Common errors shared by all services.
var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryRequest, 0),
		Reason:   "BAD_REQUEST",
		HTTP:     http.StatusBadRequest,
		GRPCCode: codes.InvalidArgument,
		Message:  "Bad request",
	})

	// ErrInvalidParam indicates an invalid parameter.
	ErrInvalidParam = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryRequest, 1),
		Reason:   "INVALID_PARAM",
		HTTP:     http.StatusBadRequest,
		GRPCCode: codes.InvalidArgument,
		Message:  "Invalid parameter",
	})

	// ErrMissingParam indicates a missing required parameter.
	ErrMissingParam = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryRequest, 2),
		Reason:   "MISSING_PARAM",
		HTTP:     http.StatusBadRequest,
		GRPCCode: codes.InvalidArgument,
		Message:  "Missing required parameter",
	})

	// ErrNotFound indicates the resource does not exist.
	ErrNotFound = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryResource, 0),
		Reason:   "NOT_FOUND",
		HTTP:     http.StatusNotFound,
		GRPCCode: codes.NotFound,
		Message:  "Resource not found",
	})

	// ErrInternal indicates an unexpected server error.
	ErrInternal = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryInternal, 0),
		Reason:   "INTERNAL_ERROR",
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.Internal,
		Message:  "Internal server error",
	})

	// ErrTimeout indicates the operation timed out.
	ErrTimeout = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryTimeout, 0),
		Reason:   "TIMEOUT",
		HTTP:     http.StatusGatewayTimeout,
		GRPCCode: codes.DeadlineExceeded,
		Message:  "Operation timed out",
	})

	// ErrHandlerTimeout indicates a request handler exceeded its deadline.
	ErrHandlerTimeout = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryTimeout, 1),
		Reason:   "REQUEST_TIMEOUT",
		HTTP:     http.StatusRequestTimeout,
		GRPCCode: codes.DeadlineExceeded,
		Message:  "Request timed out",
	})

	// ErrConfig indicates invalid service configuration.
	ErrConfig = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryConfig, 0),
		Reason:   "CONFIG_ERROR",
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.Internal,
		Message:  "Invalid configuration",
	})

	// ErrValidationFailed indicates request body validation failed.
	ErrValidationFailed = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryRequest, 3),
		Reason:   "VALIDATION_FAILED",
		HTTP:     http.StatusBadRequest,
		GRPCCode: codes.InvalidArgument,
		Message:  "Validation failed",
	})

	// ErrRequestTooLarge indicates the request body exceeded the size limit.
	ErrRequestTooLarge = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryRequest, 4),
		Reason:   "REQUEST_TOO_LARGE",
		HTTP:     http.StatusRequestEntityTooLarge,
		GRPCCode: codes.InvalidArgument,
		Message:  "Request body too large",
	})

	// ErrRouteNotFound indicates no route matched the request path.
	ErrRouteNotFound = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryResource, 1),
		Reason:   "ROUTE_NOT_FOUND",
		HTTP:     http.StatusNotFound,
		GRPCCode: codes.NotFound,
		Message:  "Route not found",
	})

	// ErrTooManyRequests indicates the client exceeded a rate limit.
	ErrTooManyRequests = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryRateLimit, 0),
		Reason:   "TOO_MANY_REQUESTS",
		HTTP:     http.StatusTooManyRequests,
		GRPCCode: codes.ResourceExhausted,
		Message:  "Too many requests",
	})

	// ErrPanic indicates a recovered service panic.
	ErrPanic = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryInternal, 1),
		Reason:   "SERVICE_PANIC",
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.Internal,
		Message:  "Service panic",
	})

	// ErrServiceUnavailable indicates the service cannot handle the request.
	ErrServiceUnavailable = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryNetwork, 0),
		Reason:   "SERVICE_UNAVAILABLE",
		HTTP:     http.StatusServiceUnavailable,
		GRPCCode: codes.Unavailable,
		Message:  "Service unavailable",
	})
)

// Chat pipeline errors.
var (
	// ErrRepoBusy indicates the per-repository concurrency limit was hit
	// and no permit became available within the wait window.
	ErrRepoBusy = Register(&Errno{
		Code:     MakeCode(ServiceChat, CategoryRateLimit, 0),
		Reason:   "CHAT_REPO_CONCURRENCY_LIMIT",
		HTTP:     http.StatusTooManyRequests,
		GRPCCode: codes.ResourceExhausted,
		Message:  "Too many concurrent requests for this repository",
	})

	// ErrRequestTimeout indicates the chat request exceeded its deadline.
	ErrRequestTimeout = Register(&Errno{
		Code:     MakeCode(ServiceChat, CategoryTimeout, 0),
		Reason:   "CHAT_REQUEST_TIMEOUT",
		HTTP:     http.StatusGatewayTimeout,
		GRPCCode: codes.DeadlineExceeded,
		Message:  "Chat request timed out",
	})

	// ErrGeneration indicates answer generation failed.
	ErrGeneration = Register(&Errno{
		Code:     MakeCode(ServiceChat, CategoryInternal, 0),
		Reason:   "CHAT_GENERATION_ERROR",
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.Internal,
		Message:  "Answer generation failed",
	})

	// ErrRepoNotIndexed indicates the repository has no indexed chunks.
	ErrRepoNotIndexed = Register(&Errno{
		Code:     MakeCode(ServiceChat, CategoryResource, 0),
		Reason:   "CHAT_REPO_NOT_INDEXED",
		HTTP:     http.StatusNotFound,
		GRPCCode: codes.NotFound,
		Message:  "Repository is not indexed",
	})
)

// Infrastructure errors.
var (
	// ErrVectorStore indicates a vector store operation failed.
	ErrVectorStore = Register(&Errno{
		Code:     MakeCode(ServiceInfraDB, CategoryDatabase, 0),
		Reason:   "VECTOR_STORE_ERROR",
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.Internal,
		Message:  "Vector store operation failed",
	})

	// ErrEmbedding indicates query embedding failed.
	ErrEmbedding = Register(&Errno{
		Code:     MakeCode(ServiceInfraDB, CategoryInternal, 0),
		Reason:   "EMBEDDING_ERROR",
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.Internal,
		Message:  "Query embedding failed",
	})

	// ErrCache indicates a cache tier operation failed.
	ErrCache = Register(&Errno{
		Code:     MakeCode(ServiceInfraCache, CategoryCache, 0),
		Reason:   "CACHE_ERROR",
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.Internal,
		Message:  "Cache operation failed",
	})

	// ErrDatabase indicates a storage backend operation failed.
	ErrDatabase = Register(&Errno{
		Code:     MakeCode(ServiceInfraDB, CategoryDatabase, 1),
		Reason:   "DATABASE_ERROR",
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.Internal,
		Message:  "Database operation failed",
	})
)
