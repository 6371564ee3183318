//go:build !ketama_debug
// +build !ketama_debug

package ketama

const debug = false

func assertConsistent(*Ring, *Continuum, map[Server]int) {}
