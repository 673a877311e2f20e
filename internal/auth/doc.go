// Package auth handles credential verification and API tokens.
//
// Hearth is a single-operator system: one admin credential lives in
// config as an argon2id hash in PHC string format, and a successful
// login yields a short-lived JWT that the API middleware validates on
// every request.
package auth
