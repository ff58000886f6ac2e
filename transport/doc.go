// Package transport provides outbound email transports for courier.
//
// Every type here implements courier.Transport:
//
//   - APIClient posts each email as JSON to an HTTP email API
//   - SMTP sends a multipart/alternative message through an SMTP relay
//
// and two decorators wrap any courier.Transport:
//
//   - WithCircuitBreaker stops calling a failing provider for a while
//   - WithRateLimit spaces sends out to respect a provider quota
//
// Example:
//
//	sender, _ := model.ParseSubscriberEmail("news@example.com")
//	client, err := transport.NewAPIClient("https://api.postmarkapp.com", sender, token, 10*time.Second)
//	if err != nil {
//	    return err
//	}
//	t := transport.WithRateLimit(
//	    transport.WithCircuitBreaker(client, transport.BreakerSettings("email-api", 5, 30*time.Second)),
//	    rate.NewLimiter(rate.Limit(10), 1),
//	)
package transport
