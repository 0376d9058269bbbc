package api

import (
	"github.com/gofiber/fiber/v2"
)

func MapAPIs(app *fiber.App, baseURL string) {
	api := app.Group(baseURL).Name("API")
	{
		auth := api.Group("/auth").Name("Auth API")
		{
			auth.Post("/refresh", refreshSession)
			auth.Delete("/session", signOut)
		}

		applications := api.Group("/applications").Name("Applications API")
		{
			applications.Get("/:applicationId/conversation", getApplicationConversation)
		}

		conversations := api.Group("/conversations").Name("Conversations API")
		{
			conversations.Get("/", listConversations)
			conversations.Post("/direct", createDirectConversation)
			conversations.Get("/:conversationId", getConversation)
			conversations.Delete("/:conversationId", deleteConversation)
			conversations.Post("/:conversationId/messages", newConversationMessage)
			conversations.Post("/:conversationId/read", markConversationRead)
		}

		api.Put("/messages/:messageId", editMessage)

		groups := api.Group("/groups").Name("Groups API")
		{
			groups.Get("/", listGroups)
			groups.Post("/", createGroup)
			groups.Delete("/:groupId", deleteGroup)
			groups.Post("/:groupId/members", addGroupMembers)
			groups.Get("/:groupId/messages", listGroupMessages)
			groups.Post("/:groupId/messages", newGroupMessage)
			groups.Post("/:groupId/read", markGroupRead)
		}

		broadcasts := api.Group("/broadcasts").Name("Broadcasts API")
		{
			broadcasts.Get("/", listBroadcasts)
			broadcasts.Post("/", createBroadcast)
			broadcasts.Post("/:broadcastId/recipients", addBroadcastRecipients)
			broadcasts.Get("/:broadcastId/messages", listBroadcastMessages)
			broadcasts.Post("/:broadcastId/messages", newBroadcastMessage)
		}

		api.Get("/unread", getUnread)
	}
}
