package dbmeta

// StorageAPI is the metadata interface the engine needs to implement
type StorageAPI interface {
	GetVersion() (string, error)
	GetDatabase() (string, string, error)
	GetDatasets() (map[string]interface{}, error)
}
