package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"clouddeploy/cmd"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

func main() {
	docsDir := "./docs"
	if len(os.Args) > 1 {
		docsDir = os.Args[1]
	}

	if err := os.MkdirAll(docsDir, 0755); err != nil {
		log.Fatalf("Failed to create docs directory: %v", err)
	}

	content, err := genCommandsMarkdown(cmd.RootCmd)
	if err != nil {
		log.Fatalf("Failed to generate documentation: %v", err)
	}

	filename := filepath.Join(docsDir, "README.md")
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		log.Fatalf("Failed to write %s: %v", filename, err)
	}
	fmt.Printf("✅ Documentation generated in %s\n", filename)
}

// genCommandsMarkdown はルートと全サブコマンドを1つのファイルにまとめる
func genCommandsMarkdown(root *cobra.Command) (string, error) {
	commands := []*cobra.Command{root}
	for _, subCmd := range root.Commands() {
		if subCmd.IsAvailableCommand() && !subCmd.IsAdditionalHelpTopicCommand() {
			commands = append(commands, subCmd)
		}
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf("# %s Commands\n\n", root.Name()))
	content.WriteString("## Table of Contents\n\n")
	for _, c := range commands {
		content.WriteString(fmt.Sprintf("- [%s](#%s)\n", c.CommandPath(), anchorFor(c.CommandPath())))
	}
	content.WriteString("\n---\n\n")

	for _, c := range commands {
		buf := new(bytes.Buffer)
		if err := doc.GenMarkdownCustom(c, buf, linkHandler); err != nil {
			return "", fmt.Errorf("failed to generate markdown for %s: %w", c.CommandPath(), err)
		}
		cmdDoc := buf.String()
		if c.Name() == "version" {
			cmdDoc = removeInheritedFlagsSection(cmdDoc)
		}
		content.WriteString(cmdDoc)
		content.WriteString("\n---\n\n")
	}
	return content.String(), nil
}

// linkHandler は同一ファイル内のアンカーへリンクする
// clouddeploy_invalidate.md -> #clouddeploy-invalidate
func linkHandler(name string) string {
	return "#" + anchorFor(strings.TrimSuffix(name, ".md"))
}

func anchorFor(commandPath string) string {
	replacer := strings.NewReplacer(" ", "-", "_", "-")
	return replacer.Replace(commandPath)
}

// removeInheritedFlagsSection は継承フラグセクションを削除
func removeInheritedFlagsSection(content string) string {
	lines := strings.Split(content, "\n")
	result := []string{}
	inInheritedSection := false

	for _, line := range lines {
		if strings.HasPrefix(line, "### Options inherited from parent commands") {
			inInheritedSection = true
			continue
		}
		if inInheritedSection && strings.HasPrefix(line, "### ") {
			inInheritedSection = false
		}
		if !inInheritedSection {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}
