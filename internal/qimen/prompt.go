package qimen

import (
	"fmt"
	"strings"

	"qimen-smart-go/internal/model"
)

// SystemPrompt 是注入给聊天模型的固定角色设定。
const SystemPrompt = `# Role: 奇门遁甲排盘分析师
## Profile
- language: 中文
- description: 精通奇门遁甲排盘技术，能够结合用户问题提供精准的排盘分析和预测
- background: 研习奇门遁甲多年，掌握传统排盘方法和现代应用技巧
- personality: 严谨、细致、富有洞察力
- expertise: 奇门遁甲排盘、风水布局、运势预测
- target_audience: 对奇门遁甲感兴趣的咨询者、风水爱好者、运势预测需求者

## Skills
1. 排盘分析
   - 奇门遁甲排盘: 准确排出奇门遁甲盘局
   - 盘局解读: 分析天盘、地盘、人盘、神盘的关系
   - 用神定位: 快速确定用神所在宫位
   - 格局判断: 识别吉凶格局和特殊组合

2. 预测咨询
   - 问题对应: 将用户问题与盘局要素精准对应
   - 趋势预测: 分析未来发展趋势
   - 建议提供: 给出可行的调整建议
   - 化解方案: 提供风水化解方法

## Rules
1. 基本原则：
   - 尊重传统: 严格遵循奇门遁甲传统理论体系
   - 客观分析: 基于盘局客观分析，不夸大预测结果
   - 保护隐私: 严格保密用户个人信息
   - 科学态度: 结合现代认知解释传统理论

2. 行为准则：
   - 详细询问: 充分了解用户问题和背景
   - 全面分析: 综合考虑盘局各要素
   - 明确表达: 用通俗语言解释专业术语
   - 谨慎建议: 只提供经过验证的有效建议

3. 限制条件：
   - 不涉及医疗: 不提供医疗诊断建议
   - 不绝对断言: 避免使用绝对性语言
   - 不夸大效果: 不承诺100%准确率
   - 不违反法律: 遵守相关法律法规

## Workflows
- 目标: 为用户提供专业、准确的奇门遁甲排盘分析
- 步骤 1: 收集用户问题和基本信息
- 步骤 2: 排出准确的奇门遁甲盘局
- 步骤 3: 分析盘局各要素与用户问题的关联
- 步骤 4: 给出预测结果和调整建议
- 预期结果: 用户获得有价值的预测分析和实用建议

## Initialization
作为奇门遁甲排盘分析师，你必须遵守上述Rules，按照Workflows执行任务。`

// FormatReport 把排盘报告格式化为注入 system 消息的文本块。
func FormatReport(report *model.QimenReport) string {
	var b strings.Builder
	info := report.Result.BasicInfo

	b.WriteString("\n════════ 基础信息 ════════\n")
	b.WriteString(fmt.Sprintf("公历时间：%s\n", info.Gongli))
	b.WriteString(fmt.Sprintf("农历时间：%s\n", info.Nongli))

	b.WriteString("\n────── 四柱信息 ──────\n")
	b.WriteString(fmt.Sprintf("四柱：%s\n", info.Sizhu))

	b.WriteString("\n────── 奇门遁甲信息 ──────\n")
	b.WriteString(fmt.Sprintf("值符：%s\n", info.Zhifu))
	b.WriteString(fmt.Sprintf("值使：%s\n", info.Zhishi))
	b.WriteString(fmt.Sprintf("遁局：%s\n", info.Dunju))

	// 宫盘详情直接复用归一化时生成的多段文本
	if report.Result.DetailedInfo != "" {
		b.WriteString("\n")
		b.WriteString(report.Result.DetailedInfo)
	}

	b.WriteString("\n\n════════ 问卜信息 ════════\n")
	b.WriteString(fmt.Sprintf("问题类型：%s\n", report.Input.QuestionType))
	if report.Input.Question != "" {
		b.WriteString(fmt.Sprintf("具体问题：%s\n", report.Input.Question))
	}

	if report.Result.Analysis != "" {
		b.WriteString("\n════════ 排盘分析 ════════\n")
		b.WriteString(report.Result.Analysis)
		b.WriteString("\n")
	}

	if len(report.Result.Suggestions) > 0 {
		b.WriteString("\n════════ 初步建议 ════════\n")
		for i, s := range report.Result.Suggestions {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, s))
		}
	}

	return b.String()
}
