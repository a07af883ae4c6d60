package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v1"

	"finspider/src/server"
)

func main() {

	app := cli.NewApp()

	app.Name = "finspider"
	app.Version = "0.1.0"
	app.Description = "地级行政区划财政决算公开文件爬虫"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config,c",
			Usage: "配置文件",
			Value: "./config.yaml",
		},
		cli.BoolFlag{
			Name:  "test,t",
			Usage: "测试模式，仅爬取少量城市",
		},
		cli.StringFlag{
			Name:  "regions,r",
			Usage: "显式指定区域列表（逗号分隔），如 赣州市,杭州市",
		},
		cli.IntFlag{
			Name:  "year,y",
			Usage: "覆盖目标年份",
		},
		cli.BoolFlag{
			Name:  "verify-mappings",
			Usage: "映射校验模式：验证已存映射并给出修复建议",
		},
		cli.BoolFlag{
			Name:  "update",
			Usage: "映射校验模式下把建议写回存储",
		},
	}

	s := server.NewServer()
	app.Action = s.Start

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
	}
}
