// Package config загружает конфигурацию из окружения.
//
// Переменные можно положить в .env в рабочей директории (godotenv).
// У каждого параметра есть значение по умолчанию; границы проверяются
// тегами validator при старте, процесс с неверной конфигурацией не запускается.
//
// Основные переменные:
//
//	DB_URL, RABBITMQ_URL, WORKER_ID, WEBHOOK_SECRET
//	CLAIM_BATCH_SIZE, POLL_INTERVAL, CLAIM_VISIBILITY_TIMEOUT
//	SCRAPER_HEADLESS, SCRAPER_SLOWMO_MS, SCRAPER_GOTO_TIMEOUT_MS, SCRAPER_WAIT_TIMEOUT_MS
//	SCRAPER_JITTER_MIN_MS, SCRAPER_JITTER_MAX_MS, SCRAPER_DISCOVER_CAP
//	SCRAPER_EVIDENCE, SCRAPER_EVIDENCE_DIR
//	DELIVERY_WEBHOOK_URL, DELIVERY_TIMEOUT, DELIVERY_RATE_PER_SEC
//	DELIVERY_BACKOFF_BASE, DELIVERY_BACKOFF_CAP, DELIVERY_MAX_ATTEMPTS
package config
