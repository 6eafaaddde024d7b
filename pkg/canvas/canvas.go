// Package canvas provides the public API for embedding the Canvas client.
// This is the stable surface for external consumers; every name here
// aliases the internal packages.
package canvas

import (
	"github.com/lmskit/canvas-go/internal/auth"
	"github.com/lmskit/canvas-go/internal/cachestore"
	"github.com/lmskit/canvas-go/internal/cachestore/memory"
	"github.com/lmskit/canvas-go/internal/cachestore/redis"
	"github.com/lmskit/canvas-go/internal/cachestore/sqlite"
	"github.com/lmskit/canvas-go/internal/client"
	"github.com/lmskit/canvas-go/internal/transport"
)

// Client is a Canvas LMS REST API client.
// See internal/client.Client for full documentation.
type Client = client.Client

// Option is a functional option for configuring a Client.
type Option = client.Option

// RequestOption adjusts how a single request moves through the
// middleware pipeline.
type RequestOption = client.RequestOption

// Request is a single API call for Client.Do.
type Request = client.Request

// New creates a Client for a Canvas instance.
// Example:
//
//	c, err := canvas.New("https://school.instructure.com",
//	    canvas.WithAPIToken(os.Getenv("CANVAS_TOKEN")),
//	)
var New = client.New

// Version is the client version reported in the default User-Agent.
const Version = client.Version

// Client options
var (
	// Authentication
	WithAPIToken    = client.WithAPIToken
	WithOAuth       = client.WithOAuth
	WithTokenSource = client.WithTokenSource

	// Transport
	WithHTTPClient = client.WithHTTPClient
	WithTransport  = client.WithTransport
	WithUserAgent  = client.WithUserAgent
	WithTimeout    = client.WithTimeout

	// Pipeline
	WithCacheStore       = client.WithCacheStore
	WithBucketStore      = client.WithBucketStore
	WithMiddlewareConfig = client.WithMiddlewareConfig
	WithoutMiddleware    = client.WithoutMiddleware

	// Observability
	WithLogger  = client.WithLogger
	WithMetrics = client.WithMetrics
	WithTracing = client.WithTracing
)

// Per-request options
var (
	WithNoCache      = client.WithNoCache
	WithCacheRefresh = client.WithCacheRefresh
	WithNoRetry      = client.WithNoRetry
	WithBucketKey    = client.WithBucketKey
	WithLogField     = client.WithLogField
)

// Resource services, reached through the Client's fields.
type (
	AccountsService    = client.AccountsService
	AssignmentsService = client.AssignmentsService
	CoursesService     = client.CoursesService
	EnrollmentsService = client.EnrollmentsService
	ModulesService     = client.ModulesService
	PagesService       = client.PagesService
	SectionsService    = client.SectionsService
	SubmissionsService = client.SubmissionsService
	TermsService       = client.TermsService
	UsersService       = client.UsersService
)

// Resource objects
type (
	Account     = client.Account
	Assignment  = client.Assignment
	Course      = client.Course
	Enrollment  = client.Enrollment
	Grades      = client.Grades
	Module      = client.Module
	ModuleItem  = client.ModuleItem
	Page        = client.Page
	Section     = client.Section
	Submission  = client.Submission
	Term        = client.Term
	User        = client.User
	UserProfile = client.UserProfile
)

// Operation parameters
type (
	ListOptions = client.ListOptions

	ListAccountsParams     = client.ListAccountsParams
	ListAssignmentsParams  = client.ListAssignmentsParams
	AssignmentParams       = client.AssignmentParams
	ListCoursesParams      = client.ListCoursesParams
	CourseParams           = client.CourseParams
	ListEnrollmentsParams  = client.ListEnrollmentsParams
	CreateEnrollmentParams = client.CreateEnrollmentParams
	ListModulesParams      = client.ListModulesParams
	ModuleParams           = client.ModuleParams
	ListPagesParams        = client.ListPagesParams
	PageParams             = client.PageParams
	ListSectionsParams     = client.ListSectionsParams
	SectionParams          = client.SectionParams
	ListSubmissionsParams  = client.ListSubmissionsParams
	GradeSubmissionParams  = client.GradeSubmissionParams
	ListTermsParams        = client.ListTermsParams
	ListUsersParams        = client.ListUsersParams
	CreateUserParams       = client.CreateUserParams
	UserParams             = client.UserParams
	PseudonymParams        = client.PseudonymParams
)

// APIError is a decoded Canvas error response.
type APIError = client.APIError

// Error predicates
var (
	IsNotFound     = client.IsNotFound
	IsUnauthorized = client.IsUnauthorized
	IsThrottled    = client.IsThrottled
)

// Pipeline errors, for errors.As against wrapped request failures.
type (
	RateLimitError      = transport.RateLimitError
	WaitLimitError      = transport.WaitLimitError
	RetryExhaustedError = transport.RetryExhaustedError
)

// Rate-limit buckets
type (
	BucketStore       = transport.BucketStore
	BucketSnapshot    = transport.BucketSnapshot
	MemoryBucketStore = transport.MemoryBucketStore
)

var (
	NewMemoryBucketStore = transport.NewMemoryBucketStore
	DefaultBucketStore   = transport.DefaultBucketStore
)

// Authentication
type (
	Token            = auth.Token
	TokenStore       = auth.TokenStore
	TokenSource      = transport.TokenSource
	OAuthConfig      = auth.OAuthConfig
	OAuthTokenSource = auth.OAuthTokenSource
	StaticToken      = auth.StaticToken
	FileStore        = auth.FileStore
)

var (
	NewStaticToken      = auth.NewStaticToken
	NewOAuthTokenSource = auth.NewOAuthTokenSource
	NewFileStore        = auth.NewFileStore
)

// Cache backends
type (
	CacheStore       = cachestore.Store
	CacheStats       = cachestore.Stats
	RedisCacheOption = redis.Option
)

var (
	NewMemoryCache          = memory.New
	NewRedisCache           = redis.New
	NewRedisCacheWithClient = redis.NewWithClient
	WithRedisNamespace      = redis.WithNamespace
	NewSQLiteCache          = sqlite.New
)
