package common

// On-disk layout below the peer data directory.
const (
	ManifestFileName  = "shared_manifest.json"
	UserStoreFileName = "userData.json"
	HistoryFileName   = "history.db"
	SharedDirName     = "shared"
	DownloadDirName   = "downloads"
	PrivateKeyDirName = "private_keys"
)
