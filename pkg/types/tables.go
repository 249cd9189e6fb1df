package types

// Standard collection names. Both collections are keyed by the record's
// own id field.
const (
	AgentsCollection = "agents"
	SongsCollection  = "songs"
)

// DeprecatedCollectionNames lists collections left over from earlier schema
// versions. The drop_deprecated migration removes them when present.
var DeprecatedCollectionNames = []string{
	"broadcast",
}
