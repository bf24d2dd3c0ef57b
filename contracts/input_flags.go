package contracts

type InputFlags struct {
	Engine    string `mapstructure:"engine"`
	Workers   int    `mapstructure:"workers"`
	LogLevel  string `mapstructure:"log-level"`
	HistoryDB string `mapstructure:"history-db"`

	S3Bucket string `mapstructure:"s3-bucket"`
	S3Region string `mapstructure:"s3-region"`
	S3Prefix string `mapstructure:"s3-prefix"`
}
