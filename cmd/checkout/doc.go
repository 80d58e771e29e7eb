// Command checkout runs the checkout service and its operational tasks.
//
//	checkout serve             # HTTP API + gRPC health
//	checkout migrate           # run migrations
//	checkout migrate:rollback
//	checkout migrate:status
//	checkout seed              # demo user + bearer token
//	checkout queue:work        # sync workers (QUEUE_DRIVER=redis)
//	checkout schedule:run      # stale order sweeper
//	checkout route:list        # list API routes
//	checkout webhook:sign      # sign a payload for local webhook replay
package main
