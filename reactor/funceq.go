package reactor

import "reflect"

// funcEqual reports whether two FileProc values point at the same
// function. Go forbids direct equality comparison between func values, so
// this compares their underlying code pointers via reflection, used only
// to suppress duplicate dispatch when one proc is registered as both the
// read and write handler for an fd.
func funcEqual(a, b FileProc) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
