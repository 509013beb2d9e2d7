package config

// Sampler defaults.
const (
	DefaultAnonymize = true
	DefaultWorkers   = 1
)

// DefaultSupportedEntityTypes are the entity types reported unless
// configured otherwise. The user entity type is always added.
var DefaultSupportedEntityTypes = []string{
	"block_content",
	"media",
	"node",
	"paragraph",
	"taxonomy_term",
}

// DefaultSupportedFieldTypes are the field types described in bundle
// records unless configured otherwise.
var DefaultSupportedFieldTypes = []string{
	"boolean",
	"datetime",
	"decimal",
	"email",
	"entity_reference",
	"entity_reference_revisions",
	"file",
	"image",
	"integer",
	"link",
	"list_integer",
	"list_string",
	"string",
	"string_long",
	"text",
	"text_long",
	"text_with_summary",
	"timestamp",
}

// Database defaults.
const (
	DefaultDatabaseDriver       = "mysql"
	DefaultDatabaseMaxOpenConns = 4
)

// Site defaults.
const (
	DefaultSiteManifest  = "site.yaml"
	DefaultSiteCacheSize = 1024
)

// Logging defaults.
const (
	DefaultLoggingLevel = "info"
	DefaultLoggingJSON  = false
)

// Output defaults.
const (
	DefaultOutputFormat = "json"
	DefaultS3Region     = "us-east-1"
	DefaultS3UseSSL     = true
)
