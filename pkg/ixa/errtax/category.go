// Package errtax classifies the errors the core and model code can raise
// into a small, fixed taxonomy, independent of where in the call stack an
// error originates. Callers that want to react to "is this my fault or the
// model's" (a CLI printing a clean message, a test harness deciding whether
// to retry a flaky setup step) use Categorize rather than type-switching on
// every concrete error type themselves.
package errtax

// Category groups an error by what kind of failure it represents, not by
// its concrete Go type.
type Category int

const (
	// CategoryConfiguration means a run's configuration file or flags were
	// malformed or inconsistent. Always the caller's fault, never retryable.
	CategoryConfiguration Category = iota
	// CategoryInitialization means a plugin, entity store, or RNG failed to
	// set up before the first plan ran.
	CategoryInitialization
	// CategoryQuery means a query predicate referenced a property, index, or
	// entity that does not exist, or a sample was requested that the data
	// cannot satisfy.
	CategoryQuery
	// CategoryIO means a report sink, checkpoint ledger, or config loader
	// failed to read or write the filesystem.
	CategoryIO
	// CategoryModel means model code itself raised an error from inside a
	// plan callback or event handler.
	CategoryModel
	// CategoryUnknown is returned for any error Categorize does not
	// recognize — ordinary errors from outside this taxonomy.
	CategoryUnknown
)

func (c Category) String() string {
	switch c {
	case CategoryConfiguration:
		return "configuration"
	case CategoryInitialization:
		return "initialization"
	case CategoryQuery:
		return "query"
	case CategoryIO:
		return "io"
	case CategoryModel:
		return "model"
	default:
		return "unknown"
	}
}

// categorized is implemented by every error type in this package.
type categorized interface {
	Category() Category
}

// Categorize reports the Category of err, walking its Unwrap chain to find
// the first error that declares one, in this package or any other. Errors
// with no Category method anywhere in their Unwrap chain report
// CategoryUnknown.
func Categorize(err error) Category {
	for err != nil {
		if c, ok := err.(categorized); ok {
			return c.Category()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return CategoryUnknown
}
