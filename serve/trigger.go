package serve

import (
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
)

// TriggerServer injects a manual detection into the pipeline loop. The
// request is handed to the loop through C so the controller stays
// single-threaded.
type TriggerServer struct {
	C chan<- int

	seq atomic.Int64
}

func (s *TriggerServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	seq, err := strconv.Atoi(r.Form.Get("seq"))
	if err != nil {
		seq = int(s.seq.Add(1))
	}

	select {
	case s.C <- seq:
	default:
		http.Error(w, "pipeline busy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Add("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}
