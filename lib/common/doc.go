// Package common holds the pieces shared by the mstore commands: the client
// configuration and the logger factory that gives every package logger the same
// "LEVEL | package | message" format.
package common
