// Package model defines the core domain types shared by the feed pipeline:
// decoded ticks, subscriptions, and subscription modes.
package model
