// Package mongo connects to MongoDB with mongo-driver/v2. It backs the
// document flavour of the subscription store.
package mongo
