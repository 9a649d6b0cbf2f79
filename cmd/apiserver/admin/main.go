package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"circle-go/internal/config"
	"circle-go/internal/logging"
	"circle-go/internal/models"
	"circle-go/internal/storage"
)

const timeLayout = "2006-01-02 15:04:05"

func usage() {
	fmt.Println("使用方法:")
	fmt.Println("  ./admin [-config path] show-user <userID>              - 显示用户信息")
	fmt.Println("  ./admin [-config path] list-friends <userID>           - 列出用户的所有好友")
	fmt.Println("  ./admin [-config path] list-requests <userID> [since]  - 列出待处理和已接受的好友请求 (since 为 RFC3339)")
}

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(1)
	}

	log := logging.New(os.Stderr, "info", "text")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fatal(log, "无法加载配置", err)
	}
	if cfg.Database.Type != "postgres" {
		fatal(log, "admin 只支持 postgres", fmt.Errorf("DATABASE.TYPE=%s", cfg.Database.Type))
	}

	// 数据库连接
	sqlDB, err := sql.Open("postgres", storage.DSN(cfg.Database))
	if err != nil {
		fatal(log, "连接数据库失败", err)
	}
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{
		Logger: logger.New(
			slog.NewLogLogger(log.Handler(), slog.LevelDebug),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		fatal(log, "创建 GORM 实例失败", err)
	}

	userRepo := storage.NewGormUserRepository(db)
	relStore := storage.NewGormRelationshipStore(db)

	userID, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fatal(log, "无效的用户ID", err)
	}
	ctx := context.Background()

	switch args[0] {
	case "show-user":
		err = showUser(ctx, userRepo, relStore, uint(userID))
	case "list-friends":
		err = listFriends(ctx, userRepo, relStore, uint(userID))
	case "list-requests":
		var since time.Time
		if len(args) > 2 {
			since, err = time.Parse(time.RFC3339, args[2])
			if err != nil {
				fatal(log, "无效的 since 时间", err)
			}
		}
		err = listRequests(ctx, relStore, uint(userID), since)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fatal(log, "执行 "+args[0]+" 失败", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}

func showUser(ctx context.Context, users storage.UserRepository, rel storage.RelationshipStore, userID uint) error {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	friendIDs, err := rel.FriendIDs(ctx, userID)
	if err != nil {
		return err
	}

	fmt.Printf("用户 %d 信息:\n", userID)
	fmt.Println("--------------------------------------")
	fmt.Printf("用户名: %s\n", user.Username)
	fmt.Printf("邮箱: %s\n", user.Email)
	fmt.Printf("姓名: %s\n", user.FullName)
	fmt.Printf("已完成引导: %v\n", user.IsOnboarded)
	fmt.Printf("创建时间: %s\n", user.CreatedAt.Format(timeLayout))
	fmt.Printf("好友数量: %d\n", len(friendIDs))
	return nil
}

func listFriends(ctx context.Context, users storage.UserRepository, rel storage.RelationshipStore, userID uint) error {
	friendIDs, err := rel.FriendIDs(ctx, userID)
	if err != nil {
		return err
	}
	friends, err := users.GetBasicInfoByIDs(ctx, friendIDs)
	if err != nil {
		return err
	}

	fmt.Printf("用户 %d 的好友 (%d 人):\n", userID, len(friends))
	fmt.Println("--------------------------------------")
	for i, f := range friends {
		fmt.Printf("#%d ID: %d, 用户名: %s, 姓名: %s\n", i+1, f.ID, f.Username, f.FullName)
	}
	return nil
}

func listRequests(ctx context.Context, rel storage.RelationshipStore, userID uint, since time.Time) error {
	incoming, err := rel.ListIncoming(ctx, userID)
	if err != nil {
		return err
	}
	outgoing, err := rel.ListOutgoing(ctx, userID)
	if err != nil {
		return err
	}
	accepted, err := rel.ListAcceptedSince(ctx, userID, since)
	if err != nil {
		return err
	}

	printRequests("收到的待处理请求", incoming)
	printRequests("发出的待处理请求", outgoing)
	printRequests("已接受的请求", accepted)
	return nil
}

func printRequests(title string, requests []models.FriendRequest) {
	fmt.Printf("%s (%d):\n", title, len(requests))
	fmt.Println("--------------------------------------")
	for _, r := range requests {
		line := fmt.Sprintf("ID: %d, 发送者: %d, 接收者: %d, 状态: %s, 创建时间: %s",
			r.ID, r.SenderID, r.RecipientID, r.Status, r.CreatedAt.Format(timeLayout))
		if r.AcceptedAt != nil {
			line += ", 接受时间: " + r.AcceptedAt.Format(timeLayout)
		}
		fmt.Println(line)
	}
	fmt.Println()
}
