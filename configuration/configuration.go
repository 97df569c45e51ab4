package configuration

type Configuration struct {
	HttpAddr          string `usage:"HTTP address"`
	Storage           string `usage:"storage adapter: memory, journal or badger"`
	Dir               string `usage:"data directory for journal and badger storages"`
	SyncWrites        bool   `usage:"sync every write to disk"`
	IDProperty        string `usage:"record field holding the identity"`
	IDGenerator       string `usage:"identity generator: uuid or ulid"`
	Seed              string `usage:"YAML or JSON file with records loaded on start"`
	LogLevel          string `usage:"log level: debug, info, warn or error"`
	EnableCompression bool   `usage:"gzip responses when the client accepts it"`
	Version           bool   `usage:"show version and exit"`
	ShowBanner        bool   `usage:"show big banner"`
	ShowConfig        bool   `usage:"print config"`
}

func Default() Configuration {
	return Configuration{
		HttpAddr:          "127.0.0.1:8080",
		Storage:           "memory",
		Dir:               "data",
		SyncWrites:        false,
		IDProperty:        "id",
		IDGenerator:       "uuid",
		LogLevel:          "info",
		EnableCompression: true,
		ShowBanner:        true,
	}
}
