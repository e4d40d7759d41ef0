// Package routes assembles the stores, the websocket hub and the HTTP
// surface.
package routes

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"chathub/access"
	"chathub/admin"
	"chathub/auth"
	"chathub/channels"
	"chathub/chatroom"
	"chathub/membership"
	"chathub/moderation"
	"chathub/settings"
	"chathub/uploads"
)

// App holds every wired component. Stores share the one database handle; the
// registry is the single source of presence truth.
type App struct {
	Users      *auth.Users
	Channels   *channels.Store
	Members    *membership.Registry
	Moderation *moderation.Store
	Settings   *settings.Store
	Files      *uploads.Store
	Stickers   *uploads.Stickers
	Access     *access.Evaluator
	Registry   *chatroom.Registry
	Hub        *chatroom.Hub

	staticDir string
}

func NewApp(conn *sql.DB, staticDir string) *App {
	app := &App{
		Users:      &auth.Users{DB: conn},
		Channels:   &channels.Store{DB: conn},
		Members:    &membership.Registry{DB: conn},
		Moderation: &moderation.Store{DB: conn},
		Settings:   &settings.Store{DB: conn},
		Files:      &uploads.Store{Dir: staticDir},
		Registry:   chatroom.NewRegistry(),
		staticDir:  staticDir,
	}
	app.Stickers = &uploads.Stickers{DB: conn, Files: app.Files}
	app.Access = &access.Evaluator{Moderation: app.Moderation}
	app.Hub = &chatroom.Hub{
		Registry:   app.Registry,
		Channels:   app.Channels,
		Members:    app.Members,
		Moderation: app.Moderation,
		Access:     app.Access,
	}
	return app
}

func Setup(r *gin.Engine, app *App) {
	authHandlers := &auth.Handlers{Users: app.Users, Moderation: app.Moderation}
	gate := &auth.SiteGate{Settings: app.Settings, Moderation: app.Moderation}
	uploadHandlers := &uploads.Handlers{
		Files:    app.Files,
		Stickers: app.Stickers,
		Channels: app.Channels,
		Members:  app.Members,
		Access:   app.Access,
		Registry: app.Registry,
	}
	adminHandlers := &admin.Handlers{
		Users:      app.Users,
		Channels:   app.Channels,
		Members:    app.Members,
		Moderation: app.Moderation,
		Settings:   app.Settings,
		Stickers:   app.Stickers,
		Registry:   app.Registry,
	}

	r.Static("/static", app.staticDir)

	// Login and the status probe stay reachable while the site is closed.
	r.POST("/api/login", authHandlers.HandleLogin)
	r.POST("/api/logout", authHandlers.HandleLogout)
	r.GET("/api/site-status", func(c *gin.Context) {
		closed, err := app.Settings.SiteClosed()
		if err != nil {
			c.JSON(500, gin.H{"error": "Error checking site status"})
			return
		}
		c.JSON(200, gin.H{"site_closed": closed})
	})

	authed := r.Group("/", auth.Middleware(app.Users))

	// Banned users may still read their own ban.
	authed.GET("/api/my-ban", func(c *gin.Context) {
		user, _ := auth.CurrentUser(c)
		ban, err := app.Moderation.EffectiveBan(user.ID, 0)
		if err != nil {
			c.JSON(500, gin.H{"error": "Error checking account status"})
			return
		}
		if ban == nil {
			c.JSON(200, gin.H{"banned": false})
			return
		}
		c.JSON(200, gin.H{"banned": true, "detail": moderation.Describe(ban, "banned", "")})
	})

	gated := authed.Group("/", gate.Handler())
	gated.GET("/ws", app.Hub.HandleSocket)
	gated.POST("/api/upload-media", uploadHandlers.HandleUploadMedia)
	gated.GET("/api/stickers", uploadHandlers.HandleApprovedStickers)
	gated.GET("/api/my-channels", func(c *gin.Context) {
		user, _ := auth.CurrentUser(c)
		list, err := app.Channels.MemberChannels(user.ID)
		if err != nil {
			c.JSON(500, gin.H{"error": "Error loading channels"})
			return
		}
		out := make([]gin.H, 0, len(list))
		for _, channel := range list {
			out = append(out, gin.H{
				"id":           channel.ID,
				"name":         channel.Name,
				"description":  channel.Description,
				"is_writable":  channel.IsWritable,
				"is_protected": channel.IsProtected(),
			})
		}
		c.JSON(200, gin.H{"channels": out})
	})

	mod := gated.Group("/api/mod", admin.ModeratorRequired())
	mod.POST("/mute", adminHandlers.HandleApplyMute)
	mod.POST("/kick", adminHandlers.HandleKick)
	mod.POST("/messages/:id/pin", adminHandlers.HandlePinMessage)

	adm := gated.Group("/api/admin", admin.AdminRequired())
	adm.GET("/channels", adminHandlers.HandleListChannels)
	adm.POST("/channels", adminHandlers.HandleCreateChannel)
	adm.PUT("/channels/:id", adminHandlers.HandleEditChannel)
	adm.POST("/channels/:id/toggle-writable", adminHandlers.HandleToggleChannelWritable)
	adm.DELETE("/channels/:id", adminHandlers.HandleDeleteChannel)
	adm.GET("/users", adminHandlers.HandleListUsers)
	adm.POST("/users", adminHandlers.HandleCreateUser)
	adm.PUT("/users/:id/role", adminHandlers.HandleSetUserRole)
	adm.DELETE("/users/:id", adminHandlers.HandleDeleteUser)
	adm.POST("/ban", adminHandlers.HandleApplyBan)
	adm.GET("/join-requests", adminHandlers.HandlePendingRequests)
	adm.POST("/join-requests/:id/approve", adminHandlers.HandleApproveRequest)
	adm.POST("/join-requests/:id/reject", adminHandlers.HandleRejectRequest)
	adm.GET("/stickers/pending", adminHandlers.HandlePendingStickers)
	adm.POST("/stickers/:id/approve", adminHandlers.HandleApproveSticker)
	adm.POST("/stickers/:id/reject", adminHandlers.HandleRejectSticker)
	adm.POST("/toggle-maintenance", adminHandlers.HandleToggleMaintenance)
}
