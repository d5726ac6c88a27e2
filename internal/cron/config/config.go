package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Transcription run, empty means every CHECK_INTERVAL_SECONDS
	CronScheduleTranscription string `env:"CRON_SCHEDULE_TRANSCRIPTION"`
}
