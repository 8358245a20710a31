// Package resilience retries the startup connections to backing services
// with capped exponential backoff and jitter.
//
//	engine, err := resilience.Retry(ctx, resilience.ConnectBackoff(5), nil,
//	    func(ctx context.Context) (*gorm.DB, error) { return open(ctx) })
package resilience
