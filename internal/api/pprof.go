package api

import (
	"net/http/pprof"

	"github.com/gin-gonic/gin"

	"github.com/tos-network/hashfarm/internal/util"
)

// registerPprof mounts the pprof endpoints under /debug/pprof
func registerPprof(router *gin.Engine) {
	debug := router.Group("/debug/pprof")
	{
		debug.GET("/", gin.WrapF(pprof.Index))
		debug.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		debug.GET("/profile", gin.WrapF(pprof.Profile))
		debug.POST("/symbol", gin.WrapF(pprof.Symbol))
		debug.GET("/symbol", gin.WrapF(pprof.Symbol))
		debug.GET("/trace", gin.WrapF(pprof.Trace))
		for _, name := range []string{"goroutine", "heap", "allocs", "threadcreate", "block", "mutex"} {
			debug.GET("/"+name, gin.WrapH(pprof.Handler(name)))
		}
	}

	util.Info("pprof endpoints enabled under /debug/pprof/")
}
