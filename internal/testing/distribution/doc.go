// Package distribution holds end-to-end treasury scenarios: payout plans,
// conversion through the exchange adapter and the threshold trigger, all
// driven through the in-memory test environment.
package distribution
