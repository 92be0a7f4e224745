package oracle

import (
	_ "embed"
	"strings"
)

//go:embed stdlib/python.txt
var pythonStdlibData string

var pythonStdlib = map[string]bool{}

func init() {
	for _, line := range strings.Split(pythonStdlibData, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pythonStdlib[line] = true
		// urllib.request -> urllib
		pythonStdlib[strings.Split(line, ".")[0]] = true
	}
}

// IsStdlib reports whether module is part of the Python standard library.
func IsStdlib(module string) bool {
	return pythonStdlib[module]
}

type builtinKind int

const (
	builtinClass builtinKind = iota + 1
	builtinFunction
	builtinInstance
)

var pythonBuiltins = map[string]builtinKind{
	"abs": builtinFunction, "aiter": builtinFunction, "all": builtinFunction, "anext": builtinFunction,
	"any": builtinFunction, "ascii": builtinFunction, "bin": builtinFunction, "breakpoint": builtinFunction,
	"callable": builtinFunction, "chr": builtinFunction, "compile": builtinFunction, "delattr": builtinFunction,
	"dir": builtinFunction, "divmod": builtinFunction, "eval": builtinFunction, "exec": builtinFunction,
	"format": builtinFunction, "getattr": builtinFunction, "globals": builtinFunction, "hasattr": builtinFunction,
	"hash": builtinFunction, "help": builtinFunction, "hex": builtinFunction, "id": builtinFunction,
	"input": builtinFunction, "isinstance": builtinFunction, "issubclass": builtinFunction, "iter": builtinFunction,
	"len": builtinFunction, "locals": builtinFunction, "max": builtinFunction, "min": builtinFunction,
	"next": builtinFunction, "oct": builtinFunction, "open": builtinFunction, "ord": builtinFunction,
	"pow": builtinFunction, "print": builtinFunction, "repr": builtinFunction, "round": builtinFunction,
	"setattr": builtinFunction, "sorted": builtinFunction, "sum": builtinFunction, "vars": builtinFunction,
	"__import__": builtinFunction,

	"bool": builtinClass, "bytearray": builtinClass, "bytes": builtinClass, "classmethod": builtinClass,
	"complex": builtinClass, "dict": builtinClass, "enumerate": builtinClass, "filter": builtinClass,
	"float": builtinClass, "frozenset": builtinClass, "int": builtinClass, "list": builtinClass,
	"map": builtinClass, "memoryview": builtinClass, "object": builtinClass, "property": builtinClass,
	"range": builtinClass, "reversed": builtinClass, "set": builtinClass, "slice": builtinClass,
	"staticmethod": builtinClass, "str": builtinClass, "super": builtinClass, "tuple": builtinClass,
	"type": builtinClass, "zip": builtinClass,

	"BaseException": builtinClass, "Exception": builtinClass, "ArithmeticError": builtinClass,
	"AssertionError": builtinClass, "AttributeError": builtinClass, "EOFError": builtinClass,
	"ImportError": builtinClass, "ModuleNotFoundError": builtinClass, "IndexError": builtinClass,
	"KeyError": builtinClass, "KeyboardInterrupt": builtinClass, "LookupError": builtinClass,
	"MemoryError": builtinClass, "NameError": builtinClass, "NotImplementedError": builtinClass,
	"OSError": builtinClass, "IOError": builtinClass, "FileNotFoundError": builtinClass,
	"PermissionError": builtinClass, "RecursionError": builtinClass, "RuntimeError": builtinClass,
	"StopIteration": builtinClass, "StopAsyncIteration": builtinClass, "SyntaxError": builtinClass,
	"SystemExit": builtinClass, "TimeoutError": builtinClass, "TypeError": builtinClass,
	"UnicodeError": builtinClass, "ValueError": builtinClass, "ZeroDivisionError": builtinClass,
	"Warning": builtinClass, "DeprecationWarning": builtinClass, "UserWarning": builtinClass,

	"Ellipsis": builtinInstance, "NotImplemented": builtinInstance, "__name__": builtinInstance,
	"__file__": builtinInstance, "__doc__": builtinInstance, "__debug__": builtinInstance,
}
