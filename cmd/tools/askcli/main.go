package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/yesno-chat/backend/internal/config"
	"github.com/zhouzirui/yesno-chat/backend/internal/service/answer"
	"github.com/zhouzirui/yesno-chat/backend/internal/service/chat"
	"github.com/zhouzirui/yesno-chat/backend/internal/view"
)

const clearScreen = "\033[H\033[2J"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	width := flag.Int("width", 72, "终端宽度")
	tail := flag.Int("tail", 20, "保留在屏幕上的行数")
	timeout := flag.Duration("timeout", cfg.Answer.Timeout, "单次获取回答的超时时间")
	plain := flag.Bool("plain", false, "不清屏，逐条追加输出")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(ctx, cfg, *timeout)
	if err != nil {
		log.Fatalf("初始化回答来源失败: %v", err)
	}

	session := chat.NewSession(chat.WithTimeFormat(cfg.Chat.TimeLayout, cfg.Chat.Location))
	controller := chat.NewController(session, provider, chat.ControllerConfig{
		FetchTimeout: *timeout,
		DiscardStale: cfg.Chat.DiscardStale,
	})

	events, unsubscribe := session.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range events {
			render(session, *width, *tail, *plain)
		}
	}()

	controller.Initialize()
	fmt.Println("输入问题并回车；以 ? 结尾会得到回答。/new 开始新会话，/quit 退出。")

	lines := make(chan string)
	go readLines(lines)

	for {
		select {
		case <-ctx.Done():
			shutdown(controller, unsubscribe, done)
			return
		case line, ok := <-lines:
			if !ok {
				shutdown(controller, unsubscribe, done)
				return
			}
			switch strings.TrimSpace(line) {
			case "/quit":
				shutdown(controller, unsubscribe, done)
				return
			case "/new":
				controller.Initialize()
				continue
			}
			controller.SetDraft(line)
			controller.Submit(ctx)
		}
	}
}

func newProvider(ctx context.Context, cfg *config.Config, timeout time.Duration) (answer.Provider, error) {
	if cfg.Answer.Provider == config.ProviderOracle {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			return nil, err
		}
		return answer.NewOracleProvider(ctx, chatModel)
	}
	return answer.NewYesNoClient(answer.WithURL(cfg.Answer.URL), answer.WithTimeout(timeout)), nil
}

func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		log.Printf("[WARN] 读取输入失败: %v", err)
	}
}

func render(session *chat.Session, width, tail int, plain bool) {
	if !plain {
		fmt.Print(clearScreen)
	}
	for _, line := range view.Render(session.Messages(), width, tail) {
		fmt.Println(line)
	}
	if plain {
		fmt.Println(strings.Repeat("-", width))
	}
}

func shutdown(controller *chat.Controller, unsubscribe func(), done <-chan struct{}) {
	controller.Wait()
	unsubscribe()
	<-done
}
