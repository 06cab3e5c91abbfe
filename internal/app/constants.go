package app

const (
	Name           = "d7logger"
	ConfigFilename = "config.yaml"
	DBFilename     = "archive.db"
	LogFilename    = "d7logger.log"
	BusCapacity    = 256
)
