package xredis_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/omeyang/flux/pkg/storage/xredis"
)

// 演示基本的客户端创建和命令执行
func Example() {
	client, err := xredis.New("127.0.0.1:6379",
		xredis.WithPoolSize(5),
		xredis.WithMaxRetries(3),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Set(ctx, "greeting", "hello", time.Minute); err != nil {
		log.Fatal(err)
	}

	val, err := client.Get(ctx, "greeting")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(val)
}

// 演示脚本缓存协议:按哈希执行，未命中时自动按源码注册
func ExampleClient_EvalWithFallback() {
	client, err := xredis.New("127.0.0.1:6379")
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	const src = `return {0, tonumber(ARGV[1])}`

	// 哈希由调用方预计算，通常在进程启动时完成一次
	sha, err := client.LoadScript(context.Background(), src)
	if err != nil {
		log.Fatal(err)
	}

	reply, err := client.EvalWithFallback(context.Background(), sha, src,
		[]string{"demo"}, []any{42})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Pair())
}

// 演示重试观测:通过回调记录每次失败的尝试
func ExampleWithOnRetry() {
	client, err := xredis.New("127.0.0.1:6379",
		xredis.WithMaxRetries(2),
		xredis.WithBaseDelay(50*time.Millisecond),
		xredis.WithOnRetry(func(attempt int, err error) {
			log.Printf("attempt %d failed: %v", attempt, err)
		}),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	if _, err := client.Ping(context.Background()); err != nil {
		log.Fatal(err)
	}
}
