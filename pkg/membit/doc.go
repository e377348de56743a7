// Package membit implements the Membit rewards API client: account
// identity, epoch/points polling, signed image upload slots, and post plus
// engagement submission.
package membit
