// Package qimen 负责把上游排盘 API 的响应归一化为应用内的排盘结果。
// 全部为纯函数：同样的输入永远产出同样的结果。
package qimen

import (
	"errors"
	"fmt"
	"strings"

	"qimen-smart-go/internal/model"
)

// 单宫子字段缺失时的降级哨兵。整体数据缺失则直接报错，由调用方回退到模拟数据。
const (
	sentinelNone  = "无"
	sentinelError = "数据错误"
)

// ErrMissingGongPan 表示上游响应缺少九宫数据，无法归一化。
var ErrMissingGongPan = errors.New("上游响应缺少九宫数据")

// Normalize 将上游排盘数据转换为归一化结果。
// 九宫列表整体缺失时返回错误；单宫子字段缺失只做降级，不中断整体处理。
func Normalize(data *model.QimenData) (*model.QimenResult, error) {
	if data == nil || data.GongPan == nil {
		return nil, ErrMissingGongPan
	}

	tianpan := make([]string, 0, 9)
	dipan := make([]string, 0, 9)
	renpan := make([]string, 0, 9)
	shenpan := make([]string, 0, 9)

	// 固定输出 9 宫：上游少给的宫位用哨兵占位，保证四盘数组恒为 9 元素。
	for i := 0; i < 9; i++ {
		if i >= len(data.GongPan) {
			tianpan = append(tianpan, sentinelError)
			dipan = append(dipan, sentinelError)
			renpan = append(renpan, sentinelError)
			shenpan = append(shenpan, sentinelError)
			continue
		}
		pan := data.GongPan[i]
		tianpan = append(tianpan, pan.Tianpan.Jiuxing+pan.Tianpan.Sanqiliuyi)
		dipan = append(dipan, pan.Dipan.Sanqiliuyi)
		renpan = append(renpan, pan.Renpan.Bamen)
		if pan.Shenpan.Bashen == "" {
			shenpan = append(shenpan, sentinelNone)
		} else {
			shenpan = append(shenpan, pan.Shenpan.Bashen)
		}
	}

	return &model.QimenResult{
		Tianpan:      tianpan,
		Dipan:        dipan,
		Renpan:       renpan,
		Shenpan:      shenpan,
		Analysis:     buildAnalysis(data),
		Suggestions:  buildSuggestions(data),
		BasicInfo:    buildBasicInfo(data),
		DetailedInfo: buildDetailedInfo(data),
	}, nil
}

// buildBasicInfo 汇总基础信息，每个字段缺失时降级为固定提示文本。
func buildBasicInfo(data *model.QimenData) model.QimenBasicInfo {
	info := model.QimenBasicInfo{
		Gongli: data.Gongli,
		Nongli: data.Nongli,
		Sizhu:  "四柱信息获取失败",
		Zhifu:  "值符信息获取失败",
		Zhishi: "值使信息获取失败",
	}
	if info.Gongli == "" {
		info.Gongli = "公历时间获取失败"
	}
	if info.Nongli == "" {
		info.Nongli = "农历时间获取失败"
	}
	if sz := data.SizhuInfo; sz != nil {
		info.Sizhu = fmt.Sprintf("%s%s %s%s %s%s %s%s",
			sz.YearGan, sz.YearZhi, sz.MonthGan, sz.MonthZhi,
			sz.DayGan, sz.DayZhi, sz.HourGan, sz.HourZhi)
	}
	if zf := data.ZhifuInfo; zf != nil {
		info.Zhifu = fmt.Sprintf("%s星（落%s宫）", zf.ZhifuName, zf.ZhifuLuogong)
		info.Zhishi = fmt.Sprintf("%s（落%s宫）", zf.ZhishiName, zf.ZhishiLuogong)
	}
	dunju := data.Dunju
	if dunju == "" {
		dunju = "遁局获取失败"
	}
	dingju := data.Dingju
	if dingju == "" {
		dingju = "定局获取失败"
	}
	info.Dunju = fmt.Sprintf("%s（%s）", dunju, dingju)
	return info
}

// buildDetailedInfo 生成多段式的详细解读文本。
func buildDetailedInfo(data *model.QimenData) string {
	var b strings.Builder

	b.WriteString("════════ 基础信息 ════════\n")
	b.WriteString(fmt.Sprintf("公历时间：%s\n", orText(data.Gongli, "获取失败")))
	b.WriteString(fmt.Sprintf("农历时间：%s\n\n", orText(data.Nongli, "获取失败")))

	if sz := data.SizhuInfo; sz != nil {
		b.WriteString("────── 四柱信息 ──────\n")
		b.WriteString(fmt.Sprintf("年柱：%s%s\n", sz.YearGan, sz.YearZhi))
		b.WriteString(fmt.Sprintf("月柱：%s%s\n", sz.MonthGan, sz.MonthZhi))
		b.WriteString(fmt.Sprintf("日柱：%s%s\n", sz.DayGan, sz.DayZhi))
		b.WriteString(fmt.Sprintf("时柱：%s%s\n\n", sz.HourGan, sz.HourZhi))
	}

	if xk := data.XunkongInfo; xk != nil {
		b.WriteString("────── 旬空信息 ──────\n")
		b.WriteString(fmt.Sprintf("年柱旬空：%s\n", orText(xk.YearXunkong, "获取失败")))
		b.WriteString(fmt.Sprintf("月柱旬空：%s\n", orText(xk.MonthXunkong, "获取失败")))
		b.WriteString(fmt.Sprintf("日柱旬空：%s\n", orText(xk.DayXunkong, "获取失败")))
		b.WriteString(fmt.Sprintf("时柱旬空：%s\n\n", orText(xk.HourXunkong, "获取失败")))
	}

	b.WriteString("────── 奇门遁甲信息 ──────\n")
	if zf := data.ZhifuInfo; zf != nil {
		b.WriteString(fmt.Sprintf("值符：%s星（落%s宫）\n", orText(zf.ZhifuName, "获取失败"), zf.ZhifuLuogong))
		b.WriteString(fmt.Sprintf("值使：%s（落%s宫）\n", orText(zf.ZhishiName, "获取失败"), zf.ZhishiLuogong))
	}
	b.WriteString(fmt.Sprintf("符首：%s\n", orText(data.Fushou, "获取失败")))
	b.WriteString(fmt.Sprintf("旬首：%s\n", orText(data.Xunshou, "获取失败")))
	b.WriteString(fmt.Sprintf("遁局：%s（%s）\n", orText(data.Dunju, "获取失败"), orText(data.Dingju, "获取失败")))
	if data.Panlei != "" {
		b.WriteString(fmt.Sprintf("盘类：%s\n", data.Panlei))
	}

	if data.JieqiPre != "" || data.JieqiNext != "" {
		b.WriteString("\n────── 节气信息 ──────\n")
		if data.JieqiPre != "" {
			b.WriteString(fmt.Sprintf("上一节气：%s\n", data.JieqiPre))
		}
		if data.JieqiNext != "" {
			b.WriteString(fmt.Sprintf("下一节气：%s\n", data.JieqiNext))
		}
	}

	if len(data.GongPan) > 0 {
		b.WriteString("\n════════ 奇门遁甲宫盘分析 ════════")
		for i, pan := range data.GongPan {
			gongName := fmt.Sprintf("第%d宫", i+1)
			if i < len(model.GongOrder) {
				gongName = model.GongOrder[i] + "宫"
			}
			b.WriteString(fmt.Sprintf("\n────── %s ──────", gongName))
			b.WriteString(fmt.Sprintf("\n【神盘】%s", orText(pan.Shenpan.Bashen, sentinelNone)))
			b.WriteString(fmt.Sprintf("\n【天盘】九星：%s | 三奇六仪：%s", pan.Tianpan.Jiuxing, pan.Tianpan.Sanqiliuyi))
			b.WriteString(fmt.Sprintf("\n【地盘】三奇六仪：%s", pan.Dipan.Sanqiliuyi))
			b.WriteString(fmt.Sprintf("\n【人盘】八门：%s", pan.Renpan.Bamen))
			if pan.Description.GongJu != "" {
				b.WriteString(fmt.Sprintf("\n◎ 宫局状态：%s", pan.Description.GongJu))
			}
			if pan.Description.LuoGongDesc != "" {
				b.WriteString(fmt.Sprintf("\n◎ 详细解读：%s", pan.Description.LuoGongDesc))
			}
		}
	}

	return b.String()
}

// buildAnalysis 生成指向值符落宫的简短分析段落。
func buildAnalysis(data *model.QimenData) string {
	if zf := data.ZhifuInfo; zf != nil && zf.ZhifuName != "" {
		return fmt.Sprintf(
			"本局值符%s星落%s宫，值使%s落%s宫。基于奇门遁甲排盘的详细分析请查看【奇门遁甲报告】中的具体内容，AI助手将结合这些信息为您提供更深入的解读。",
			zf.ZhifuName, zf.ZhifuLuogong, zf.ZhishiName, zf.ZhishiLuogong)
	}
	return "基于奇门遁甲排盘的详细分析请查看【奇门遁甲报告】中的具体内容。AI助手将结合这些信息为您提供更深入的解读。"
}

// buildSuggestions 按固定规则生成 4 条建议。
// 规则只做模板填充：遁局含“阳”/“阴”决定第一条，值符信息决定第二条，后两条固定。
func buildSuggestions(data *model.QimenData) []string {
	suggestions := make([]string, 0, 4)

	switch {
	case strings.Contains(data.Dunju, "阳"):
		suggestions = append(suggestions, "阳遁局主升发进取，宜主动出击、把握时机")
	case strings.Contains(data.Dunju, "阴"):
		suggestions = append(suggestions, "阴遁局主收敛藏守，宜静守待时、谋定后动")
	default:
		suggestions = append(suggestions, "建议结合具体问题咨询AI助手")
	}

	if zf := data.ZhifuInfo; zf != nil && zf.ZhifuName != "" {
		suggestions = append(suggestions,
			fmt.Sprintf("值符%s星落%s宫，近期可多留意该方位的人事变化", zf.ZhifuName, zf.ZhifuLuogong))
	} else {
		suggestions = append(suggestions, "注意观察时局变化")
	}

	suggestions = append(suggestions, "吉凶仅供参考，决策需谨慎", "心诚则灵，意动则行")
	return suggestions
}

func orText(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
