package commands

import (
	"fmt"

	"github.com/ESN-MoRe/members-manager/internal/pagemodel"
	"github.com/spf13/cobra"
)

var (
	editHtml   string
	editOutput string

	addSection  string
	addName     string
	addRole     string
	addImage    string
	addAfter    string
	addPosition string
	addReplace  bool

	removeName    string
	removeSection string
)

func init() {
	for _, cmd := range []*cobra.Command{addCmd, removeCmd} {
		cmd.Flags().StringVar(&editHtml, "html", "", "The page to edit.")
		cmd.Flags().StringVarP(&editOutput, "output", "o", "-", "Where to write the edited HTML.")
		cmd.MarkFlagRequired("html")
	}

	addCmd.Flags().StringVar(&addSection, "section", "", "BOARD, SUPPORTERS, ACTIVE, MASCOTS or ALUMNI.")
	addCmd.Flags().StringVar(&addName, "name", "", "The member's name.")
	addCmd.Flags().StringVar(&addRole, "role", "", "The member's role.")
	addCmd.Flags().StringVar(&addImage, "image", "", "The picture filename, derived from the name when empty.")
	addCmd.Flags().StringVar(&addAfter, "after", "", "Insert the card after this member.")
	addCmd.Flags().StringVar(&addPosition, "position", string(pagemodel.PositionStart), "start or end.")
	addCmd.Flags().BoolVar(&addReplace, "replace", false, "Replace an existing card with the same name.")
	addCmd.MarkFlagRequired("section")
	addCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(addCmd)

	removeCmd.Flags().StringVar(&removeName, "name", "", "The member to remove.")
	removeCmd.Flags().StringVar(&removeSection, "section", "", "Only remove from this section.")
	removeCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(removeCmd)
}

func sectionFlag(value string) (pagemodel.SectionType, error) {
	t, ok := pagemodel.ParseSectionType(value)
	if !ok {
		return "", fmt.Errorf("%w: %q", pagemodel.ErrUnknownSection, value)
	}
	return t, nil
}

func editDocument(fn func(doc *pagemodel.Document) error) error {
	html, err := readInput(editHtml)
	if err != nil {
		return err
	}
	doc, err := pagemodel.Parse(html)
	if err != nil {
		return err
	}
	err = fn(doc)
	if err != nil {
		return err
	}
	return writeOutput(editOutput, doc.Output())
}

var addCmd = &cobra.Command{
	Use:   "add --html <page.html> --section <section> --name <name> [--role <role>]",
	Short: "Adds a member card to a section of a page.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		section, err := sectionFlag(addSection)
		if err != nil {
			return err
		}
		position := pagemodel.Position(addPosition)
		if position != pagemodel.PositionStart && position != pagemodel.PositionEnd {
			return fmt.Errorf("invalid position %q", addPosition)
		}

		return editDocument(func(doc *pagemodel.Document) error {
			return doc.AddMember(section, pagemodel.Member{
				Name:          addName,
				Role:          addRole,
				ImageFilename: addImage,
				IsMascot:      section == pagemodel.Mascots,
			}, pagemodel.AddOptions{
				AfterMemberName: addAfter,
				Position:        position,
				ReplaceIfExists: addReplace,
			})
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove --html <page.html> --name <name> [--section <section>]",
	Short: "Removes a member card from a page.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts pagemodel.RemoveOptions
		if removeSection != "" {
			section, err := sectionFlag(removeSection)
			if err != nil {
				return err
			}
			opts.Section = section
		}
		return editDocument(func(doc *pagemodel.Document) error {
			return doc.RemoveMember(removeName, opts)
		})
	},
}
