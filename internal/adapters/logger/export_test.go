package logger

// FormatChain exposes formatChain for tests.
var FormatChain = formatChain
