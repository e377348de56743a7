// Package ratelimit enforces the fixed inter-request gaps the upstream APIs
// expect (300ms between timeline pages, 5s between post submissions).
package ratelimit
