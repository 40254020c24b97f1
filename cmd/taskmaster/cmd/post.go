package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"taskmaster/backend"
	"taskmaster/internal/cli/prompt"
	"taskmaster/internal/utils"
)

// newPostCmd creates the 'post' subcommand for blog post management
func newPostCmd(a *app) *cobra.Command {
	postCmd := &cobra.Command{
		Use:   "post",
		Short: "Manage blog posts",
		Long:  "List, read, write, edit and delete the blog posts kept in the posts file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, _ := cmd.Flags().GetInt("page")
			pageSize, _ := cmd.Flags().GetInt("page-size")
			return a.doPostList(cmd.Context(), page, pageSize)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	listCmd.Flags().Int("page", 1, "Page number")
	listCmd.Flags().Int("page-size", 0, "Posts per page (default: posts.page_size)")
	postCmd.AddCommand(listCmd)

	postCmd.AddCommand(&cobra.Command{
		Use:   "show [id]",
		Short: "Show a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doPostShow(cmd.Context(), args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	addCmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Write a new post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, _ := cmd.Flags().GetString("content")
			author, _ := cmd.Flags().GetString("author")
			return a.doPostAdd(cmd.Context(), backend.NewPost{Title: args[0], Content: content, Author: author})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addCmd.Flags().StringP("content", "c", "", "Post content")
	addCmd.Flags().StringP("author", "a", "", "Post author")
	postCmd.AddCommand(addCmd)

	editCmd := &cobra.Command{
		Use:   "edit [id]",
		Short: "Edit a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch backend.PostPatch
			if cmd.Flags().Changed("title") {
				title, _ := cmd.Flags().GetString("title")
				if err := utils.ValidateTitle("post", title); err != nil {
					return err
				}
				title = strings.TrimSpace(title)
				patch.Title = &title
			}
			if cmd.Flags().Changed("content") {
				content, _ := cmd.Flags().GetString("content")
				patch.Content = &content
			}
			if cmd.Flags().Changed("author") {
				author, _ := cmd.Flags().GetString("author")
				patch.Author = &author
			}
			return a.doPostEdit(cmd.Context(), args[0], patch)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	editCmd.Flags().String("title", "", "New title")
	editCmd.Flags().StringP("content", "c", "", "New content")
	editCmd.Flags().StringP("author", "a", "", "New author")
	postCmd.AddCommand(editCmd)

	postCmd.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doPostDelete(cmd.Context(), args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return postCmd
}

// parsePostRef validates a post id argument
func parsePostRef(ref string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(ref))
	if err != nil || id <= 0 {
		return 0, &utils.ErrorWithSuggestion{
			Err:        fmt.Errorf("invalid post id: %s", ref),
			Suggestion: "Post ids are positive numbers; use 'taskmaster post list' to see them",
		}
	}
	return id, nil
}

// doPostList displays one page of posts
func (a *app) doPostList(ctx context.Context, page, pageSize int) error {
	if page < 1 {
		return fmt.Errorf("--page must be at least 1, got %d", page)
	}
	if pageSize < 0 {
		return fmt.Errorf("--page-size must not be negative, got %d", pageSize)
	}
	if pageSize == 0 {
		pageSize = a.conf.GetPostsPageSize()
	}

	store, err := a.openPostStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	result, err := store.GetPosts(ctx, page, pageSize)
	if err != nil {
		return err
	}

	if a.json {
		return writeJSON(a.stdout, result)
	}

	if result.Total == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No posts yet")
		a.info()
		return nil
	}
	pages := (result.Total + result.PageSize - 1) / result.PageSize
	_, _ = fmt.Fprintf(a.stdout, "Posts (page %d of %d, %d total):\n", result.Page, pages, result.Total)
	for _, p := range result.Posts {
		_, _ = fmt.Fprintf(a.stdout, "  #%-4d %s\n", p.ID, p.Title)
		byline := p.Created.Local().Format("Jan 2, 2006")
		if p.Author != "" {
			byline = p.Author + " · " + byline
		}
		_, _ = fmt.Fprintf(a.stdout, "        %s\n", byline)
	}
	a.info()
	return nil
}

// doPostShow displays one post in full
func (a *app) doPostShow(ctx context.Context, ref string) error {
	id, err := parsePostRef(ref)
	if err != nil {
		return err
	}

	store, err := a.openPostStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	post, err := store.GetPost(ctx, id)
	if err != nil {
		return describe(err, func() error { return utils.ErrPostNotFound(ref) })
	}

	if a.json {
		return writeJSON(a.stdout, post)
	}
	a.printPost(*post)
	a.info()
	return nil
}

// doPostAdd writes a new post
func (a *app) doPostAdd(ctx context.Context, draft backend.NewPost) error {
	if err := utils.ValidateTitle("post", draft.Title); err != nil {
		return err
	}
	draft.Title = strings.TrimSpace(draft.Title)

	store, err := a.openPostStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	post, err := a.pageCache(store, 1, a.conf.GetPostsPageSize()).Create(ctx, draft)
	if err != nil {
		return err
	}

	if a.json {
		return writeJSON(a.stdout, actionResponse{Action: "add", Post: &post, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(a.stdout, "Created post #%d\n", post.ID)
	a.printPost(post)
	a.done()
	return nil
}

// doPostEdit applies patch to a post
func (a *app) doPostEdit(ctx context.Context, ref string, patch backend.PostPatch) error {
	id, err := parsePostRef(ref)
	if err != nil {
		return err
	}
	if patch.Title == nil && patch.Content == nil && patch.Author == nil {
		return &utils.ErrorWithSuggestion{
			Err:        fmt.Errorf("nothing to update"),
			Suggestion: "Pass at least one of --title, --content or --author",
		}
	}

	store, err := a.openPostStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	post, err := store.GetPost(ctx, id)
	if err != nil {
		return describe(err, func() error { return utils.ErrPostNotFound(ref) })
	}

	c := a.pageCache(store, 1, a.conf.GetPostsPageSize())
	c.Prime([]backend.Post{*post})
	updated, err := c.Update(ctx, post.EntityID(), patch)
	if err != nil {
		return describe(err, func() error { return utils.ErrPostNotFound(ref) })
	}

	if a.json {
		return writeJSON(a.stdout, actionResponse{Action: "update", Post: &updated, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(a.stdout, "Updated post #%d\n", updated.ID)
	a.printPost(updated)
	a.done()
	return nil
}

// doPostDelete removes a post. Deleting a post that does not exist succeeds.
func (a *app) doPostDelete(ctx context.Context, ref string) error {
	id, err := parsePostRef(ref)
	if err != nil {
		return err
	}

	store, err := a.openPostStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	reader, interactive := a.stdin()
	if !prompt.Confirm(fmt.Sprintf("Delete post #%d?", id), reader, a.stdout, !interactive) {
		_, _ = fmt.Fprintln(a.stdout, "Cancelled")
		return nil
	}

	if err := a.pageCache(store, 1, a.conf.GetPostsPageSize()).Delete(ctx, strconv.Itoa(id)); err != nil {
		return err
	}

	if a.json {
		type deleteResponse struct {
			Action string `json:"action"`
			ID     int    `json:"id"`
			Result string `json:"result"`
		}
		return writeJSON(a.stdout, deleteResponse{Action: "delete", ID: id, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(a.stdout, "Deleted post #%d\n", id)
	a.done()
	return nil
}

// printPost prints a post in full
func (a *app) printPost(p backend.Post) {
	_, _ = fmt.Fprintf(a.stdout, "Title: %s\n", p.Title)
	if p.Author != "" {
		_, _ = fmt.Fprintf(a.stdout, "Author: %s\n", p.Author)
	}
	_, _ = fmt.Fprintf(a.stdout, "Posted: %s\n", p.Created.Local().Format("Jan 2, 2006 15:04"))
	if !p.Modified.Equal(p.Created) {
		_, _ = fmt.Fprintf(a.stdout, "Updated: %s\n", p.Modified.Local().Format("Jan 2, 2006 15:04"))
	}
	if p.Content != "" {
		_, _ = fmt.Fprintf(a.stdout, "\n%s\n", p.Content)
	}
}
