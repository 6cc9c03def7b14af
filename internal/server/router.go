package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/svcd/internal/control"
	"github.com/loykin/svcd/internal/metrics"
	"github.com/loykin/svcd/internal/registry"
)

// Router exposes the registry over HTTP alongside the unix control socket.
// Endpoints:
//
//	GET  {basePath}/status          all registered services
//	GET  {basePath}/status/:name    one service, with resource usage when active
//	POST {basePath}/start/:name
//	POST {basePath}/stop/:name
//	POST {basePath}/restart/:name
//	GET  {basePath}/metrics         prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	reg      control.Registry
	basePath string
}

func NewRouter(reg control.Registry, basePath string) *Router {
	return &Router{reg: reg, basePath: sanitizeBase(basePath)}
}

// Handler returns a gin engine that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatusAll)
	group.GET("/status/:name", r.handleStatus)
	group.POST("/start/:name", r.handleStart)
	group.POST("/stop/:name", r.handleStop)
	group.POST("/restart/:name", r.handleRestart)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer builds an HTTP server for addr. The caller runs ListenAndServe
// and shuts it down with Shutdown.
func NewServer(addr, basePath string, reg control.Registry) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(reg, basePath).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

type errorResp struct {
	Error string `json:"error"`
}

type serviceResp struct {
	registry.Status
	Usage *metrics.ProcessMetrics `json:"usage,omitempty"`
}

func (r *Router) handleStatusAll(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.reg.StatusAll())
}

func (r *Router) handleStatus(c *gin.Context) {
	name, ok := r.name(c)
	if !ok {
		return
	}
	st, err := r.reg.Status(name)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := serviceResp{Status: st}
	if st.Active && st.PID > 0 {
		if m, err := metrics.Sample(st.PID); err == nil {
			resp.Usage = &m
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

func (r *Router) handleStart(c *gin.Context) {
	name, ok := r.name(c)
	if !ok {
		return
	}
	if err := r.reg.Start(name); err != nil {
		writeError(c, err)
		return
	}
	st, err := r.reg.Status(name)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleStop(c *gin.Context) {
	name, ok := r.name(c)
	if !ok {
		return
	}
	st, err := r.reg.Stop(name)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleRestart(c *gin.Context) {
	name, ok := r.name(c)
	if !ok {
		return
	}
	st, err := r.reg.Restart(name)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) name(c *gin.Context) (string, bool) {
	name := c.Param("name")
	if !isSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-] and no '..'"})
		return "", false
	}
	return name, true
}

func writeError(c *gin.Context, err error) {
	code := http.StatusBadRequest
	if errors.Is(err, registry.ErrServiceNotFound) {
		code = http.StatusNotFound
	}
	writeJSON(c, code, errorResp{Error: err.Error()})
}
