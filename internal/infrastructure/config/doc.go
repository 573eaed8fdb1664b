// Package config loads orgadmin settings.
//
// Values are resolved in order: built-in defaults, then the YAML file, then
// ORGADMIN_* environment variables. Validate reports every problem at once so
// a broken deployment fails on the first start rather than one field at a time.
//
// Secrets belong in the environment: ORGADMIN_JWT_SECRET (32 characters or
// more), ORGADMIN_REDIS_PASSWORD, ORGADMIN_MQTT_PASSWORD and
// ORGADMIN_INFLUXDB_TOKEN.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
package config
