package cmd

import (
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/0-chirag-s/sitecrafter/internal/mount"
	"github.com/0-chirag-s/sitecrafter/internal/reconcile"
	"github.com/0-chirag-s/sitecrafter/internal/source"
)

const (
	configBaseName   = "sitecrafter"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	envPrefix = "SITECRAFTER"

	sweepFlagName    = "sweep"
	selectorFlagName = "selector"
	journalFlagName  = "journal"
	formatGoFlagName = "format-go"
	writableFlagName = "writable"
	verboseFlagName  = "verbose"
	logFileFlagName  = "log-file"

	sweepConfigKey    = "reconcile.sweep"
	selectorConfigKey = "actions.selector"
	formatGoConfigKey = "export.format_go"
	writableConfigKey = "serve.writable"
	journalConfigKey  = "journal.path"

	s3BucketConfigKey    = "export.s3.bucket"
	s3PrefixConfigKey    = "export.s3.prefix"
	s3EndpointConfigKey  = "export.s3.endpoint"
	s3RegionConfigKey    = "export.s3.region"
	s3AccessKeyConfigKey = "export.s3.access_key"
	s3SecretKeyConfigKey = "export.s3.secret_key"

	metricsAddrConfigKey = "serve.metrics_addr"
	s3BucketFlagName     = "s3-bucket"
	metricsAddrFlagName  = "metrics-addr"

	defaultFormatGo = true
	defaultWritable = false

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".sitecrafter.log"
	defaultLogLevel      = "info"
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger = slog.Default()

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(sweepConfigKey, string(reconcile.SweepAll))
	viper.SetDefault(selectorConfigKey, source.DefaultSelector)
	viper.SetDefault(formatGoConfigKey, defaultFormatGo)
	viper.SetDefault(writableConfigKey, defaultWritable)
	viper.SetDefault(journalConfigKey, "")
	viper.SetDefault(s3BucketConfigKey, "")
	viper.SetDefault(s3PrefixConfigKey, "")
	viper.SetDefault(s3EndpointConfigKey, "")
	viper.SetDefault(s3RegionConfigKey, "")
	viper.SetDefault(s3AccessKeyConfigKey, "")
	viper.SetDefault(s3SecretKeyConfigKey, "")
	viper.SetDefault(metricsAddrConfigKey, "")

	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	// Without a config file only defaults, env and flags apply.
	_ = viper.ReadInConfig()
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger points the global slog logger at a rotating log file.
// verbose forces debug level.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}
	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	logLevel := parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	if verbose {
		logLevel = slog.LevelDebug
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}

// s3Config reads the object store settings.
func s3Config() mount.S3Config {
	return mount.S3Config{
		Endpoint:  viper.GetString(s3EndpointConfigKey),
		Region:    viper.GetString(s3RegionConfigKey),
		AccessKey: viper.GetString(s3AccessKeyConfigKey),
		SecretKey: viper.GetString(s3SecretKeyConfigKey),
	}
}

// sweepMode reads the configured completion sweep.
func sweepMode() (reconcile.SweepMode, error) {
	return reconcile.ParseSweepMode(viper.GetString(sweepConfigKey))
}
