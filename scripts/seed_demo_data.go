package main

import (
	"fmt"
	"log"
	"time"

	"github.com/habitflow/internal/config"
	"github.com/habitflow/internal/db"
	"github.com/habitflow/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// 演示数据生成器：创建 demo 用户、三个习惯和最近几周的打卡历史
func main() {
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	var count int64
	db.DB.Model(&db.User{}).Where("username = ?", "demo").Count(&count)
	if count > 0 {
		fmt.Println("demo 用户已存在，无需初始化")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("demo123"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("密码加密失败:", err)
	}

	user := db.User{Username: "demo", Password: string(hashed)}
	if err := db.DB.Create(&user).Error; err != nil {
		log.Fatal("创建用户失败:", err)
	}

	habits := service.NewHabitService(db.DB)
	entries := service.NewEntryService(db.DB)

	reminder := "07:30"
	seeds := []struct {
		input   service.HabitInput
		pattern []int // 距今天数，倒序打卡
	}{
		{
			input: service.HabitInput{
				Name:         "晨跑",
				Description:  "每天 **5 公里**，风雨无阻",
				Color:        "#3b82f6",
				ReminderTime: &reminder,
				Conditions:   []string{"拉伸", "5 公里"},
			},
			pattern: []int{0, 1, 2, 3, 5, 6, 7, 10, 11},
		},
		{
			input:   service.HabitInput{Name: "阅读 30 分钟", Color: "#10b981"},
			pattern: []int{0, 1, 4, 5, 6},
		},
		{
			input:   service.HabitInput{Name: "冥想", Color: "#f59e0b"},
			pattern: []int{1, 2, 3},
		},
	}

	now := time.Now()
	for _, seed := range seeds {
		habit, err := habits.Create(user.ID, seed.input)
		if err != nil {
			log.Fatal("创建习惯失败:", err)
		}

		for _, daysAgo := range seed.pattern {
			met := make([]bool, len(seed.input.Conditions))
			for i := range met {
				met[i] = true
			}
			if _, err := entries.Upsert(service.EntryInput{
				HabitID:       habit.ID,
				Date:          now.AddDate(0, 0, -daysAgo),
				Completed:     true,
				ConditionsMet: met,
			}); err != nil {
				log.Fatal("写入打卡失败:", err)
			}
		}

		fmt.Printf("已创建习惯 %q 及 %d 条打卡\n", habit.Name, len(seed.pattern))
	}

	fmt.Println("演示数据创建成功")
	fmt.Println("用户名: demo")
	fmt.Println("密码: demo123")
}
