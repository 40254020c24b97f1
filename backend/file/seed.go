package file

import (
	"time"

	"taskmaster/backend"
)

// seedTopics are the demo posts written to a fresh posts file, oldest first.
var seedTopics = []struct {
	title   string
	content string
}{
	{"Getting Started with React Query", "React Query is a powerful library for managing server state in React applications..."},
	{"Understanding Query Keys", "Query keys are an essential concept in React Query that determine how your queries are cached..."},
	{"Mutations in React Query", "Mutations are used to create/update/delete data or perform server side-effects..."},
	{"Optimistic Updates in React Query", "Optimistic updates allow you to update the UI before the server request completes..."},
	{"React Query Devtools", "React Query Devtools is a set of utilities to help you debug and optimize your React Query usage..."},
	{"Caching Strategies with React Query", "Learn about different caching strategies and how to implement them with React Query..."},
	{"Paginated Queries in React Query", "Paginated queries help you manage large datasets by fetching data in chunks..."},
	{"Infinite Queries in React Query", "Infinite queries allow you to load more data as the user scrolls..."},
	{"React Query with TypeScript", "Using React Query with TypeScript provides type safety and better developer experience..."},
	{"React Query Best Practices", "Follow these best practices to get the most out of React Query in your applications..."},
	{"React Query and Suspense", "Learn how to use React Query with React Suspense for better loading states..."},
	{"React Query and SSR", "Server-side rendering with React Query can improve performance and SEO..."},
	{"React Query and GraphQL", "Integrate React Query with GraphQL for efficient data fetching..."},
	{"React Query and WebSockets", "Use WebSockets with React Query for real-time data updates..."},
	{"React Query and Redux", "Combine React Query with Redux for state management..."},
	{"React Query and Authentication", "Manage authentication state with React Query..."},
	{"React Query and Error Handling", "Handle errors gracefully with React Query..."},
	{"React Query and Data Transformation", "Transform fetched data with React Query selectors..."},
	{"React Query and Data Normalization", "Normalize data fetched with React Query..."},
	{"React Query and Data Synchronization", "Keep server and client data in sync with React Query..."},
	{"React Query and Offline Support", "Support offline usage with React Query..."},
	{"React Query and Performance Optimization", "Optimize performance with React Query..."},
	{"React Query and Code Splitting", "Split code alongside React Query data loading..."},
	{"React Query and Lazy Loading", "Lazy load data with React Query..."},
	{"React Query and Data Prefetching", "Prefetch data with React Query..."},
	{"React Query and Data Pagination", "Paginate data with React Query..."},
	{"React Query and Data Sorting", "Sort data fetched with React Query..."},
	{"React Query and Data Filtering", "Filter data fetched with React Query..."},
	{"React Query and Data Aggregation", "Aggregate data with React Query..."},
	{"React Query and Data Visualization", "Visualize data fetched with React Query..."},
}

// seedPosts returns the demo posts, one per day ending today.
func seedPosts(now time.Time) []backend.Post {
	posts := make([]backend.Post, len(seedTopics))
	for i, topic := range seedTopics {
		daysAgo := len(seedTopics) - 1 - i
		created := now.Add(-time.Duration(daysAgo) * 24 * time.Hour)
		posts[i] = backend.Post{
			ID:       i + 1,
			Title:    topic.title,
			Content:  topic.content,
			Created:  created,
			Modified: created,
		}
	}
	return posts
}
