// Package leasecar defines the typed catalog entities produced by the
// extractor (vehicle specifications, price points and color options) and
// the lenient JSON decoding that turns one detail response into them.
package leasecar
