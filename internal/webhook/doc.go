// Package webhook receives signed Sentry alert webhooks and relays them to Mattermost.
//
// # Security Model
//
// - HMAC-SHA256 over the raw body, keyed with the shared Sentry client secret
// - Lowercase hex digest compared in constant time (crypto/subtle)
// - Body size limits enforced
// - No verification details leaked in error responses
// - Signature and Authorization headers redacted from logs
//
// # Request Flow
//
//  1. HTTP POST arrives at the alert path (default /alert)
//  2. Body read (413 if over max_body_size, 500 if unreadable)
//  3. sentry-hook-signature checked (400 if absent, 500 if wrong)
//  4. Body parsed as JSON (400 if invalid)
//  5. Action extracted; unknown actions are logged and acknowledged
//  6. "issue created" rendered and posted to the channel, once, with a timeout
//  7. 200 returned whatever the notification outcome
//
// Any other method or path is logged and answered with 400.
//
// # Example Usage
//
//	client := mattermost.NewClient(baseURL, token)
//	server := webhook.New(webhook.Config{
//		Listen:    "127.0.0.1:8080",
//		Secret:    os.Getenv("SENTRY_SECRET"),
//		ChannelID: channelID,
//	}, client, logger)
//	if err := server.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package webhook
