// tokengen 使用共享密钥签发角色令牌，供本地联调与 curl 测试
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/user/casting/internal/config"
	"github.com/user/casting/internal/service"
)

func main() {
	_ = godotenv.Load()

	role := flag.String("role", service.RoleProducer, "角色: "+strings.Join(service.Roles(), ", "))
	secret := flag.String("secret", os.Getenv("AUTH_HS256_SECRET"), "HS256 共享密钥")
	audience := flag.String("audience", os.Getenv("API_AUDIENCE"), "aud 声明")
	issuer := flag.String("issuer", "", "iss 声明，默认按 AUTH_ISSUER / AUTH0_DOMAIN 推导")
	expiry := flag.Duration("expiry", 24*time.Hour, "有效期")
	flag.Parse()

	if *issuer == "" {
		cfg := config.Config{AuthIssuer: os.Getenv("AUTH_ISSUER"), Auth0Domain: os.Getenv("AUTH0_DOMAIN")}
		*issuer = cfg.TokenIssuer()
	}

	token, err := service.GenerateRoleToken(*secret, *role, *audience, *issuer, *expiry)
	if err != nil {
		fmt.Fprintln(os.Stderr, "签发失败:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
