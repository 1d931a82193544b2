// Package redis provides Redis connectivity for the notification dedupe
// guard. Connect parses a redis:// URL, verifies the connection with a
// ping (retrying transient failures) and returns a ready client.
//
// Usage:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package redis
