package http

import (
	"net/http"
	"net/url"
	"strings"
)

type RouterConfig struct {
	Rooms        *RoomHandler
	Availability *AvailabilityHandler
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Rooms != nil {
		mux.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Rooms.Create(w, r)
		})
	}

	mux.HandleFunc("/rooms/", func(w http.ResponseWriter, r *http.Request) {
		segments, ok := splitPath(strings.TrimPrefix(r.URL.EscapedPath(), "/rooms/"))
		if !ok || len(segments) == 0 || segments[0] == "" {
			http.NotFound(w, r)
			return
		}

		r = r.WithContext(ContextWithRoomID(r.Context(), segments[0]))

		switch {
		case len(segments) == 1 && cfg.Rooms != nil:
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Rooms.Get(w, r)
		case cfg.Availability == nil:
			http.NotFound(w, r)
		case len(segments) == 2 && segments[1] == "participants":
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Availability.ListParticipants(w, r)
		case len(segments) == 3 && segments[1] == "participants" && segments[2] != "":
			r = r.WithContext(ContextWithParticipantName(r.Context(), segments[2]))
			switch r.Method {
			case http.MethodGet:
				cfg.Availability.GetParticipant(w, r)
			case http.MethodPut:
				cfg.Availability.PutParticipant(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut)
			}
		case len(segments) == 2 && segments[1] == "heatmap":
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Availability.Heatmap(w, r)
		case len(segments) == 2 && segments[1] == "heatmap.xlsx":
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Availability.HeatmapWorkbook(w, r)
		default:
			http.NotFound(w, r)
		}
	})

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// splitPath splits an escaped path on "/" and unescapes every segment, so
// participant names may contain an encoded slash.
func splitPath(escaped string) ([]string, bool) {
	raw := strings.Split(strings.TrimSuffix(escaped, "/"), "/")
	segments := make([]string, 0, len(raw))
	for _, segment := range raw {
		unescaped, err := url.PathUnescape(segment)
		if err != nil {
			return nil, false
		}
		segments = append(segments, unescaped)
	}
	return segments, true
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
