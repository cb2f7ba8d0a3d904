package constants

const (
	// Folders are the logical namespaces we store media under.
	// A folder is a key prefix, not a real directory.
	FolderMarketplaceProducts = "marketplace/products"
	FolderPetDatingProfiles   = "pets/dating-profiles"
	FolderPetEvolution        = "pets/evolution"
	FolderPets                = "pets"
	FolderPosts               = "posts"
	FolderTest                = "test"
	FolderUploads             = "uploads"
	FolderUsers               = "users"
	FolderVideos              = "videos"

	// Migration categories. Each category maps to one query against
	// the external record source and one target folder.
	CategoryMarketplaceImages  = "marketplace images"
	CategoryPetEvolutionPhotos = "pet evolution photos"
	CategoryPetPhotos          = "pet photos"
	CategoryPostMedia          = "post media"
	CategoryUserAvatars        = "user avatars"

	// NSQ topics for migration outcome events.
	TopicMigrationResults = "media_migration_results"
	TopicMigrationSummary = "media_migration_summary"

	// Migration record outcomes, as stored in the Redis checkpoint
	// and published to NSQ.
	OutcomeFailed   = "failed"
	OutcomeMigrated = "migrated"
	OutcomeSkipped  = "skipped"

	// StoreURLScheme is the short scheme some legacy records use to
	// address objects in our own bucket: store://<bucket>/<key>.
	StoreURLScheme = "store"

	DefaultContentType = "application/octet-stream"
	DefaultRegion      = "us-east-1"
)

// Categories lists all migration categories in the order the
// engine processes them.
var Categories = []string{
	CategoryUserAvatars,
	CategoryPostMedia,
	CategoryPetPhotos,
	CategoryPetEvolutionPhotos,
	CategoryMarketplaceImages,
}

// FolderForCategory maps a migration category to the folder its
// objects are stored under.
var FolderForCategory = map[string]string{
	CategoryMarketplaceImages:  FolderMarketplaceProducts,
	CategoryPetEvolutionPhotos: FolderPetEvolution,
	CategoryPetPhotos:          FolderPets,
	CategoryPostMedia:          FolderPosts,
	CategoryUserAvatars:        FolderUsers,
}

// ContentTypeFor maps lowercase file extensions to MIME types.
// Anything not listed here is stored as application/octet-stream.
var ContentTypeFor = map[string]string{
	".avi":  "video/x-msvideo",
	".bmp":  "image/bmp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
	".png":  "image/png",
	".svg":  "image/svg+xml",
	".webm": "video/webm",
	".webp": "image/webp",
}

// AllowedUploadTypes are the content types the upload endpoint
// accepts. Everything else is rejected before we touch the store.
var AllowedUploadTypes = []string{
	"image/bmp",
	"image/gif",
	"image/heic",
	"image/jpeg",
	"image/png",
	"image/svg+xml",
	"image/webp",
	"video/mp4",
	"video/quicktime",
	"video/webm",
	"video/x-m4v",
	"video/x-msvideo",
}
