// Package cards drives the card-based trip views: it announces each card
// as it is initialised and relays card data updates to the adapter.
package cards
