package vm

import (
	"plugin"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/silklang/moth/pkg/value"
)

// libraryCacheSize bounds the process-wide cache of opened plugin
// handles (spec §4.7/§9's library cache, distinct from the GC
// registry).
const libraryCacheSize = 32

var (
	libraryCacheOnce sync.Once
	libraryCache     *lru.Cache
	openGroup        singleflight.Group
)

func getLibraryCache() *lru.Cache {
	libraryCacheOnce.Do(func() {
		c, err := lru.New(libraryCacheSize)
		if err != nil {
			panic(err)
		}
		libraryCache = c
	})
	return libraryCache
}

// libraryHandle is the cached entry for one opened path: the resolved
// plugin plus a reference count so independently-sweeping FFIPointer
// deleters agree on when the last reference is gone. Go's plugin
// package has no Close; "releasing" a handle means dropping it from
// the cache, not unmapping it from the process.
type libraryHandle struct {
	mu   sync.Mutex
	plug *plugin.Plugin
	refs int
}

// openLibrary implements DLL: pop a String path, open (or reuse) the
// plugin at that path, and push an opaque FFI-pointer library handle.
func (vm *VM) openLibrary(nextIP int) (Status, error, int, bool) {
	pathVal, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	path, ok := asText(pathVal)
	if !ok {
		return vm.halt(StatusInvType, "DLL requires a String path, got %s", pathVal.TypeName())
	}

	cache := getLibraryCache()
	var handle *libraryHandle
	if v, found := cache.Get(path); found {
		handle = v.(*libraryHandle)
	} else {
		v, err, _ := openGroup.Do(path, func() (interface{}, error) {
			if existing, found := cache.Get(path); found {
				return existing, nil
			}
			p, err := plugin.Open(path)
			if err != nil {
				return nil, err
			}
			h := &libraryHandle{plug: p}
			cache.Add(path, h)
			return h, nil
		})
		if err != nil {
			return vm.halt(StatusInvArg, "DLL failed to open %q: %s", path, err.Error())
		}
		handle = v.(*libraryHandle)
	}

	handle.mu.Lock()
	handle.refs++
	handle.mu.Unlock()

	deleter := func(tag uint32, ptr interface{}) {
		h, ok := ptr.(*libraryHandle)
		if !ok {
			return
		}
		h.mu.Lock()
		h.refs--
		drop := h.refs <= 0
		h.mu.Unlock()
		if drop {
			cache.Remove(path)
		}
	}
	ptr := value.NewFFIPointer(ffiTagLibrary, handle, deleter)
	vm.registry.Register(ptr)
	if perr := vm.stack.Push(value.Obj(ptr)); perr != nil {
		return vm.haltErr(StatusInvArg, perr)
	}
	return StatusOK, nil, nextIP, false
}

// ffiTagLibrary distinguishes a library-handle FFIPointer from a
// native-resource FFIPointer a loaded library itself allocates, per
// §4.7's "user-defined tag for dispatch".
const ffiTagLibrary uint32 = 0

// resolveSymbol implements FFN: pop a String symbol name, peek (do not
// pop) the library handle beneath it, resolve the symbol against the
// plugin's exported Go symbol table, and push an FFI function value.
// The resolved symbol must already have FFIFunc's exact signature,
// since plugin symbols are Go-typed rather than raw C pointers.
func (vm *VM) resolveSymbol(nextIP int) (Status, error, int, bool) {
	symVal, err := vm.stack.Pop()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	name, ok := asText(symVal)
	if !ok {
		return vm.halt(StatusInvType, "FFN requires a String symbol name, got %s", symVal.TypeName())
	}

	libVal, err := vm.stack.Top()
	if err != nil {
		return vm.haltErr(StatusInvArg, err)
	}
	ptr, ok := libVal.AsObj().(*value.FFIPointer)
	if !ok || libVal.Kind() != value.KindObj {
		return vm.halt(StatusInvType, "FFN requires a library handle beneath the symbol name")
	}
	handle, ok := ptr.Ptr.(*libraryHandle)
	if !ok {
		return vm.halt(StatusInvType, "FFN library handle is not a dynamic library")
	}

	sym, err := handle.plug.Lookup(name)
	if err != nil {
		return vm.halt(StatusUndef, "FFN could not resolve %q: %s", name, err.Error())
	}
	fn, ok := sym.(func([]value.Value, *value.Value) value.FFIResult)
	if !ok {
		return vm.halt(StatusInvType, "FFN symbol %q does not match the native function signature", name)
	}

	ffiFn := value.NewFFIFunction(ptr.String(), name, value.FFIFunc(fn))
	vm.registry.Register(ffiFn)
	if perr := vm.stack.Push(value.Obj(ffiFn)); perr != nil {
		return vm.haltErr(StatusInvArg, perr)
	}
	return StatusOK, nil, nextIP, false
}
