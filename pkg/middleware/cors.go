package middleware

import (
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORSConfig allows the listed front-end origins to send the session
// cookies along with their requests.
func CORSConfig(origins string) cors.Config {
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "POST,GET,DELETE,PUT,OPTIONS",
		AllowHeaders:     "Content-Type,Cache-Control,Pragma",
		AllowCredentials: true,
	}
}
