package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"unsafe"

	"github.com/nickyhof/PagerDB"
	"github.com/nickyhof/PagerDB/core"
	"github.com/nickyhof/PagerDB/db"
	"github.com/nickyhof/PagerDB/internal/protocol"
	"github.com/nickyhof/PagerDB/ps"
)

var errInvalidHandle = errors.New("invalid handle")

var bindingIdentity = core.Identity{
	Name:  "PagerDB Python",
	Email: "python@pagerdb.local",
}

// Handle represents an open engine. Calls on one handle are serialized.
type Handle struct {
	mu       sync.Mutex
	instance *PagerDB.Instance
	engine   *db.Engine
}

func (h *Handle) open(ctx context.Context, source string) protocol.Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	database, err := h.engine.Open(ctx, source)
	if err != nil {
		return protocol.ErrorResponse(err)
	}
	return protocol.FromResult(db.InfoResult{Info: database.Info()})
}

func (h *Handle) execute(query string) protocol.Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	result, err := h.engine.Execute(query)
	if err != nil {
		return protocol.ErrorResponse(err)
	}
	return protocol.FromResult(result)
}

// handleTable maps integer handles given to C callers to engines.
type handleTable struct {
	mu      sync.Mutex
	handles map[int]*Handle
	next    int
}

var handles = &handleTable{handles: make(map[int]*Handle), next: 1}

func (table *handleTable) add(persistence *ps.Persistence) int {
	instance := PagerDB.Open(persistence)
	h := &Handle{
		instance: instance,
		engine:   instance.Engine(bindingIdentity),
	}

	table.mu.Lock()
	defer table.mu.Unlock()

	handle := table.next
	table.next++
	table.handles[handle] = h
	return handle
}

func (table *handleTable) get(handle int) (*Handle, bool) {
	table.mu.Lock()
	defer table.mu.Unlock()
	h, ok := table.handles[handle]
	return h, ok
}

func (table *handleTable) remove(handle int) {
	table.mu.Lock()
	defer table.mu.Unlock()
	delete(table.handles, handle)
}

//export pagerdb_open_memory
func pagerdb_open_memory() C.int {
	persistence, err := ps.NewMemoryPersistence()
	if err != nil {
		return -1
	}
	return C.int(handles.add(persistence))
}

// pagerdb_open_file keeps snapshots in a Git repository at path.
//
//export pagerdb_open_file
func pagerdb_open_file(path *C.char) C.int {
	persistence, err := ps.NewFilePersistence(C.GoString(path), nil)
	if err != nil {
		return -1
	}
	return C.int(handles.add(persistence))
}

//export pagerdb_close
func pagerdb_close(handle C.int) {
	handles.remove(int(handle))
}

// pagerdb_open_database opens a database source on the handle's engine and
// returns its info as a JSON response.
//
//export pagerdb_open_database
func pagerdb_open_database(handle C.int, source *C.char) *C.char {
	h, ok := handles.get(int(handle))
	if !ok {
		return makeResponse(protocol.ErrorResponse(errInvalidHandle))
	}

	return makeResponse(h.open(context.Background(), C.GoString(source)))
}

//export pagerdb_execute
func pagerdb_execute(handle C.int, query *C.char) *C.char {
	h, ok := handles.get(int(handle))
	if !ok {
		return makeResponse(protocol.ErrorResponse(errInvalidHandle))
	}

	return makeResponse(h.execute(C.GoString(query)))
}

//export pagerdb_free
func pagerdb_free(ptr *C.char) {
	C.free(unsafe.Pointer(ptr))
}

func makeResponse(resp protocol.Response) *C.char {
	jsonData, _ := json.Marshal(resp)
	return C.CString(string(jsonData))
}

func main() {}
