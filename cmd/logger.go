package main

import (
	"os"
	"path"
	"runtime"
	"time"

	rotates "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/haolipeng/nft_payload_classifier/pkg/config"
)

// parseLevel 未知级别使用WARN
func parseLevel(s string) logrus.Level {
	switch s {
	case "DEBUG":
		return logrus.DebugLevel
	case "INFO":
		return logrus.InfoLevel
	case "WARN":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	case "FATAL":
		return logrus.FatalLevel
	case "PANIC":
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel //默认
	}
}

func InitLogger(cfg *config.Config) error {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logrus.SetLevel(parseLevel(cfg.Log.Level))

	// 没有配置日志目录时只输出到终端
	if cfg.Log.Dir == "" {
		return nil
	}

	//1、判断文件路径和文件是否存在，不存在则创建
	if err := os.MkdirAll(cfg.Log.Dir, 0755); err != nil {
		return err
	}
	logFileName := path.Join(cfg.Log.Dir, cfg.Log.Filename)

	//2、日志切割功能，按时间来切割
	maxAge := time.Duration(cfg.Log.MaxAge) * time.Hour
	rotationTime := time.Duration(cfg.Log.RotateTime) * time.Hour
	if rotationTime <= 0 {
		rotationTime = time.Hour
	}
	options := []rotates.Option{
		rotates.WithMaxAge(maxAge),             //文件最大保存时间
		rotates.WithRotationTime(rotationTime), //文件切割间隔
	}
	if runtime.GOOS != "windows" {
		options = append(options, rotates.WithLinkName(logFileName)) //文件软链接
	}

	logWriter, err := rotates.New(logFileName+".%Y%m%d%H%M", options...)
	if err != nil {
		return err
	}

	//3、不同的日志级别写入同一个切割文件
	lfHook := lfshook.NewHook(lfshook.WriterMap{
		logrus.DebugLevel: logWriter,
		logrus.InfoLevel:  logWriter,
		logrus.WarnLevel:  logWriter,
		logrus.ErrorLevel: logWriter,
		logrus.FatalLevel: logWriter,
		logrus.PanicLevel: logWriter,
	}, &logrus.TextFormatter{})

	logrus.AddHook(lfHook)
	return nil
}
